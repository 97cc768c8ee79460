package account

import (
	"bytes"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound   = errors.New("no records could be found")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrStaleAccountState = errors.New("account state is stale")
)

// Record is the committed state of a single ledger account, as of Slot.
type Record struct {
	Id uint64

	Address    string
	Owner      string
	Lamports   uint64
	Data       []byte
	Executable bool

	Slot uint64

	LastUpdatedAt time.Time
}

// IsEmpty returns whether the account holds nothing and is owned by the system
// program, which is indistinguishable from an account that was never created.
func (r *Record) IsEmpty(systemProgram string) bool {
	return r.Lamports == 0 && len(r.Data) == 0 && r.Owner == systemProgram
}

func (r *Record) Validate() error {
	if err := validateKey(r.Address); err != nil {
		return errors.Wrap(err, "invalid address")
	}

	if err := validateKey(r.Owner); err != nil {
		return errors.Wrap(err, "invalid owner")
	}

	return nil
}

func (r *Record) Clone() Record {
	var data []byte
	if r.Data != nil {
		data = make([]byte, len(r.Data))
		copy(data, r.Data)
	}

	return Record{
		Id:            r.Id,
		Address:       r.Address,
		Owner:         r.Owner,
		Lamports:      r.Lamports,
		Data:          data,
		Executable:    r.Executable,
		Slot:          r.Slot,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	cloned := r.Clone()
	*dst = cloned
}

// Equals compares the account state, ignoring bookkeeping fields.
func (r *Record) Equals(other *Record) bool {
	return r.Address == other.Address &&
		r.Owner == other.Owner &&
		r.Lamports == other.Lamports &&
		bytes.Equal(r.Data, other.Data) &&
		r.Executable == other.Executable
}

func validateKey(value string) error {
	decoded, err := base58.Decode(value)
	if err != nil {
		return err
	}
	if len(decoded) != 32 {
		return errors.Errorf("invalid key length: %d", len(decoded))
	}
	return nil
}
