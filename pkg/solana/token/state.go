package token

import (
	"bytes"
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"

	"github.com/code-payments/token-escrow/pkg/solana/binary"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L125
const AccountSize = 165

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L42
const MintSize = 82

type Account struct {
	// The mint associated with this account
	Mint ed25519.PublicKey
	// The owner of this account.
	Owner ed25519.PublicKey
	// The amount of tokens this account holds.
	Amount uint64
	// If set, then the 'DelegatedAmount' represents the amount
	// authorized by the delegate.
	Delegate ed25519.PublicKey
	/// The account's state
	State AccountState
	// If set, this is a native token, and the value logs the rent-exempt reserve. An Account
	// is required to be rent-exempt, so the value is used by the Processor to ensure that wrapped
	// SOL accounts do not drop below this threshold.
	IsNative *uint64
	// The amount delegated
	DelegatedAmount uint64
	// Optional authority to close the account.
	CloseAuthority ed25519.PublicKey
}

// Marshal encodes the account in its on-ledger layout. It returns nil if Mint
// or Owner isn't a valid key.
func (a *Account) Marshal() []byte {
	return encode(AccountSize, func(encoder *bin.Encoder) error {
		if err := binary.WriteKey(encoder, a.Mint); err != nil {
			return err
		}
		if err := binary.WriteKey(encoder, a.Owner); err != nil {
			return err
		}
		if err := encoder.WriteUint64(a.Amount, bin.LE); err != nil {
			return err
		}
		if err := binary.WriteOptionalKey(encoder, a.Delegate); err != nil {
			return err
		}
		if err := encoder.WriteUint8(uint8(a.State)); err != nil {
			return err
		}
		if err := binary.WriteOptionalUint64(encoder, a.IsNative); err != nil {
			return err
		}
		if err := encoder.WriteUint64(a.DelegatedAmount, bin.LE); err != nil {
			return err
		}
		return binary.WriteOptionalKey(encoder, a.CloseAuthority)
	})
}

func (a *Account) Unmarshal(b []byte) bool {
	if len(b) != AccountSize {
		return false
	}

	decoder := bin.NewBinDecoder(b)

	var decoded Account
	var state uint8
	var err error
	if decoded.Mint, err = binary.ReadKey(decoder); err != nil {
		return false
	}
	if decoded.Owner, err = binary.ReadKey(decoder); err != nil {
		return false
	}
	if decoded.Amount, err = decoder.ReadUint64(bin.LE); err != nil {
		return false
	}
	if decoded.Delegate, err = binary.ReadOptionalKey(decoder); err != nil {
		return false
	}
	if state, err = decoder.ReadUint8(); err != nil {
		return false
	}
	decoded.State = AccountState(state)
	if decoded.IsNative, err = binary.ReadOptionalUint64(decoder); err != nil {
		return false
	}
	if decoded.DelegatedAmount, err = decoder.ReadUint64(bin.LE); err != nil {
		return false
	}
	if decoded.CloseAuthority, err = binary.ReadOptionalKey(decoder); err != nil {
		return false
	}

	*a = decoded
	return true
}

type Mint struct {
	// Optional authority used to mint new tokens.
	MintAuthority ed25519.PublicKey
	// Total supply of tokens.
	Supply uint64
	// Number of base 10 digits to the right of the decimal place.
	Decimals byte
	// Is true if this structure has been initialized
	IsInitialized bool
	// Optional authority to freeze token accounts.
	FreezeAuthority ed25519.PublicKey
}

func (m *Mint) Marshal() []byte {
	return encode(MintSize, func(encoder *bin.Encoder) error {
		if err := binary.WriteOptionalKey(encoder, m.MintAuthority); err != nil {
			return err
		}
		if err := encoder.WriteUint64(m.Supply, bin.LE); err != nil {
			return err
		}
		if err := encoder.WriteUint8(m.Decimals); err != nil {
			return err
		}
		if err := encoder.WriteBool(m.IsInitialized); err != nil {
			return err
		}
		return binary.WriteOptionalKey(encoder, m.FreezeAuthority)
	})
}

func (m *Mint) Unmarshal(b []byte) bool {
	if len(b) != MintSize {
		return false
	}

	decoder := bin.NewBinDecoder(b)

	var decoded Mint
	var err error
	if decoded.MintAuthority, err = binary.ReadOptionalKey(decoder); err != nil {
		return false
	}
	if decoded.Supply, err = decoder.ReadUint64(bin.LE); err != nil {
		return false
	}
	if decoded.Decimals, err = decoder.ReadUint8(); err != nil {
		return false
	}
	if decoded.IsInitialized, err = decoder.ReadBool(); err != nil {
		return false
	}
	if decoded.FreezeAuthority, err = binary.ReadOptionalKey(decoder); err != nil {
		return false
	}

	*m = decoded
	return true
}

func encode(size int, write func(encoder *bin.Encoder) error) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if err := write(bin.NewBinEncoder(buf)); err != nil {
		return nil
	}
	return buf.Bytes()
}
