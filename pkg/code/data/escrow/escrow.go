package escrow

import (
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

var (
	ErrEscrowNotFound   = errors.New("no records could be found")
	ErrInvalidEscrow    = errors.New("invalid escrow")
	ErrStaleEscrowState = errors.New("escrow state is stale")
)

type State uint8

const (
	StateUnknown State = iota
	StateLocked
	StateMatured
	StateReleased
)

// Record is the indexed view of an escrow state account. The stored State is
// only ever Locked or Released. Maturity depends on the time of observation,
// see StateAt.
type Record struct {
	Id uint64

	Address string

	VaultAuthority     string
	VaultAuthorityBump uint8
	VaultTokenAccount  string

	Sender   string
	Receiver string
	Mint     string

	Amount          uint64
	DepositedAmount uint64

	StartTime uint64
	EndTime   uint64

	State State

	Slot uint64

	LastUpdatedAt time.Time
}

// NewFromProgramAccount returns a record for the escrow state account at
// address, as observed at slot.
func NewFromProgramAccount(address string, data *token_escrow.EscrowAccount, slot uint64) (*Record, error) {
	r := &Record{
		Address: address,
	}

	if err := r.UpdateFromProgramAccount(data, slot); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateFromProgramAccount applies the on-ledger state observed at slot.
func (r *Record) UpdateFromProgramAccount(data *token_escrow.EscrowAccount, slot uint64) error {
	if slot <= r.Slot {
		return ErrStaleEscrowState
	}

	vaultAuthority, bump, err := token_escrow.GetVaultAuthorityAddress(&token_escrow.GetVaultAuthorityAddressArgs{
		Receiver: data.Receiver,
	})
	if err != nil {
		return errors.Wrap(err, "error deriving vault authority")
	}

	if base58.Encode(vaultAuthority) != base58.Encode(data.VaultAuthority) {
		return errors.Wrap(ErrInvalidEscrow, "vault authority isn't derived from the receiver")
	}

	vaultTokenAccount, err := token_escrow.GetVaultTokenAddress(&token_escrow.GetVaultTokenAddressArgs{
		VaultAuthority: vaultAuthority,
		Mint:           data.Mint,
	})
	if err != nil {
		return errors.Wrap(err, "error deriving vault token account")
	}

	r.VaultAuthority = base58.Encode(data.VaultAuthority)
	r.VaultAuthorityBump = bump
	r.VaultTokenAccount = base58.Encode(vaultTokenAccount)

	r.Sender = base58.Encode(data.Sender)
	r.Receiver = base58.Encode(data.Receiver)
	r.Mint = base58.Encode(data.Mint)

	r.Amount = data.Amount
	if data.Amount > r.DepositedAmount {
		r.DepositedAmount = data.Amount
	}

	r.StartTime = data.StartTime
	r.EndTime = data.EndTime

	if data.IsReleased() {
		r.State = StateReleased
	} else {
		r.State = StateLocked
	}

	r.Slot = slot

	return nil
}

// StateAt returns the escrow state at the provided unix timestamp.
func (r *Record) StateAt(now uint64) State {
	if r.State == StateLocked && now >= r.EndTime {
		return StateMatured
	}
	return r.State
}

// IsUnlockable returns whether an Unlock would move funds at now.
func (r *Record) IsUnlockable(now uint64) bool {
	return r.StateAt(now) == StateMatured
}

func (r *Record) Clone() *Record {
	cloned := *r
	return &cloned
}

func (r *Record) CopyTo(dst *Record) {
	*dst = *r
}

func (r *Record) Validate() error {
	for name, value := range map[string]string{
		"address":             r.Address,
		"vault authority":     r.VaultAuthority,
		"vault token account": r.VaultTokenAccount,
		"sender":              r.Sender,
		"receiver":            r.Receiver,
		"mint":                r.Mint,
	} {
		if len(value) == 0 {
			return errors.Wrapf(ErrInvalidEscrow, "%s is required", name)
		}
	}

	switch r.State {
	case StateLocked:
		if r.Amount == 0 {
			return errors.Wrap(ErrInvalidEscrow, "locked escrow has no funds")
		}
	case StateReleased:
		if r.Amount != 0 {
			return errors.Wrap(ErrInvalidEscrow, "released escrow still has funds")
		}
	default:
		return errors.Wrap(ErrInvalidEscrow, "invalid stored state")
	}

	if r.Amount > r.DepositedAmount {
		return errors.Wrap(ErrInvalidEscrow, "amount exceeds deposited amount")
	}

	if r.EndTime <= r.StartTime {
		return errors.Wrap(ErrInvalidEscrow, "end time must be after start time")
	}

	return nil
}

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateMatured:
		return "matured"
	case StateReleased:
		return "released"
	}
	return "unknown"
}
