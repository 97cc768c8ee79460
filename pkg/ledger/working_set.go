package ledger

import (
	"bytes"
	"crypto/ed25519"
	"sort"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/ledger/account"
	"github.com/code-payments/token-escrow/pkg/solana/system"
)

// workingAccount is the mutable, uncommitted state of an account within a
// transaction.
type workingAccount struct {
	address    ed25519.PublicKey
	owner      ed25519.PublicKey
	lamports   uint64
	data       []byte
	executable bool

	modified bool
}

func newEmptyAccount(address ed25519.PublicKey) *workingAccount {
	return &workingAccount{
		address: address,
		owner:   system.ProgramKey[:],
	}
}

func fromRecord(record *account.Record) (*workingAccount, error) {
	address, err := base58.Decode(record.Address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid address")
	}

	owner, err := base58.Decode(record.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "invalid owner")
	}

	data := make([]byte, len(record.Data))
	copy(data, record.Data)

	return &workingAccount{
		address:    address,
		owner:      owner,
		lamports:   record.Lamports,
		data:       data,
		executable: record.Executable,
	}, nil
}

func (a *workingAccount) toRecord(slot uint64) *account.Record {
	data := make([]byte, len(a.data))
	copy(data, a.data)

	return &account.Record{
		Address:    base58.Encode(a.address),
		Owner:      base58.Encode(a.owner),
		Lamports:   a.lamports,
		Data:       data,
		Executable: a.executable,
		Slot:       slot,
	}
}

func (a *workingAccount) clone() *workingAccount {
	data := make([]byte, len(a.data))
	copy(data, a.data)

	return &workingAccount{
		address:    a.address,
		owner:      a.owner,
		lamports:   a.lamports,
		data:       data,
		executable: a.executable,
		modified:   a.modified,
	}
}

// exists reports whether the account holds anything. Accounts that don't exist
// are system owned, empty and unfunded.
func (a *workingAccount) exists() bool {
	return a.lamports > 0 || len(a.data) > 0 || !bytes.Equal(a.owner, system.ProgramKey[:])
}

// workingSet is the set of accounts a transaction can touch, keyed by base58
// address.
type workingSet struct {
	accounts map[string]*workingAccount
}

func newWorkingSet() *workingSet {
	return &workingSet{accounts: make(map[string]*workingAccount)}
}

func (s *workingSet) get(address ed25519.PublicKey) (*workingAccount, bool) {
	a, ok := s.accounts[base58.Encode(address)]
	return a, ok
}

func (s *workingSet) put(a *workingAccount) {
	s.accounts[base58.Encode(a.address)] = a
}

func (s *workingSet) snapshot() *workingSet {
	cloned := newWorkingSet()
	for k, v := range s.accounts {
		cloned.accounts[k] = v.clone()
	}
	return cloned
}

func (s *workingSet) modified(slot uint64) []*account.Record {
	var res []*account.Record
	for _, a := range s.accounts {
		if a.modified {
			res = append(res, a.toRecord(slot))
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Address < res[j].Address
	})
	return res
}
