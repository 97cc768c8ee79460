package escrow

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

// Clock reports the ledger time an operation executes at.
type Clock interface {
	UnixTimestamp() uint64
}

// StorageService allocates and persists program owned accounts.
type StorageService interface {
	// CreateAccount allocates space zeroed bytes at account, funded with
	// lamports by payer and owned by owner
	CreateAccount(payer, account ed25519.PublicKey, lamports, space uint64, owner ed25519.PublicKey) error

	// GetAccountInfo reads the current state of an account
	GetAccountInfo(account ed25519.PublicKey) (solana.AccountInfo, error)

	// WriteAccount replaces the data of an account owned by the calling program
	WriteAccount(account ed25519.PublicKey, data []byte) error

	// MinimumBalance returns the rent exempt minimum for size bytes
	MinimumBalance(size uint64) uint64
}

// TokenService moves tokens between holding accounts.
type TokenService interface {
	// CreateHoldingAccount creates the canonical holding account of owner for
	// mint if it doesn't exist, paid for by auth, and returns its address
	CreateHoldingAccount(auth Authority, owner, mint ed25519.PublicKey) (ed25519.PublicKey, error)

	// Transfer moves amount tokens from one holding account to another, as
	// authorised by auth
	Transfer(from, to ed25519.PublicKey, auth Authority, amount uint64) error
}

// Environment is everything an escrow operation depends on outside of its own
// accounts.
type Environment struct {
	Program ed25519.PublicKey
	Clock   Clock
	Storage StorageService
	Token   TokenService
	Logf    func(format string, args ...interface{})
}

func (e *Environment) logf(format string, args ...interface{}) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}

// ledgerServices implements StorageService and TokenService through cross
// program invocations against the ledger.
type ledgerServices struct {
	ic *ledger.InvokeContext
}

// NewLedgerEnvironment returns an Environment backed by the invoke context of
// the instruction being processed.
func NewLedgerEnvironment(ic *ledger.InvokeContext) *Environment {
	services := &ledgerServices{ic: ic}
	return &Environment{
		Program: ic.ProgramID(),
		Clock:   ic,
		Storage: services,
		Token:   services,
		Logf:    ic.Logf,
	}
}

func (s *ledgerServices) CreateAccount(payer, account ed25519.PublicKey, lamports, space uint64, owner ed25519.PublicKey) error {
	return s.ic.Invoke(system.CreateAccount(payer, account, owner, lamports, space))
}

func (s *ledgerServices) GetAccountInfo(account ed25519.PublicKey) (solana.AccountInfo, error) {
	return s.ic.GetAccountInfo(account)
}

func (s *ledgerServices) WriteAccount(account ed25519.PublicKey, data []byte) error {
	return s.ic.SetData(account, data)
}

func (s *ledgerServices) MinimumBalance(size uint64) uint64 {
	return s.ic.MinimumBalance(size)
}

func (s *ledgerServices) CreateHoldingAccount(auth Authority, owner, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	payer, err := auth.Address()
	if err != nil {
		return nil, err
	}

	ix, address, err := token.CreateAssociatedTokenAccountIdempotent(payer, owner, mint)
	if err != nil {
		return nil, err
	}

	if err := s.invoke(auth, ix); err != nil {
		return nil, err
	}
	return address, nil
}

func (s *ledgerServices) Transfer(from, to ed25519.PublicKey, auth Authority, amount uint64) error {
	owner, err := auth.Address()
	if err != nil {
		return err
	}

	return s.invoke(auth, token.Transfer(from, to, owner, amount))
}

func (s *ledgerServices) invoke(auth Authority, ix solana.Instruction) error {
	switch typed := auth.(type) {
	case SignerAuthority:
		return s.ic.Invoke(ix)
	case ProgramAuthority:
		if !bytes.Equal(typed.Program, s.ic.ProgramID()) {
			return errors.New("program authority belongs to another program")
		}
		return s.ic.InvokeSigned(ix, typed.Seeds)
	default:
		return errors.Errorf("unsupported authority type: %T", auth)
	}
}
