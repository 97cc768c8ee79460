package token_escrow

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	EscrowAccountSize = (8 + // amount
		8 + // start_time
		8 + // end_time
		32 + // vault_authority
		32 + // sender
		32 + // mint
		32) // receiver
)

// EscrowAccount is the on-ledger record of a single deposit.
type EscrowAccount struct {
	Amount         uint64
	StartTime      uint64
	EndTime        uint64
	VaultAuthority ed25519.PublicKey
	Sender         ed25519.PublicKey
	Mint           ed25519.PublicKey
	Receiver       ed25519.PublicKey
}

func (obj EscrowAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	for _, v := range []uint64{obj.Amount, obj.StartTime, obj.EndTime} {
		if err := encoder.WriteUint64(v, bin.LE); err != nil {
			return err
		}
	}

	for _, key := range []ed25519.PublicKey{obj.VaultAuthority, obj.Sender, obj.Mint, obj.Receiver} {
		if len(key) != ed25519.PublicKeySize {
			return errors.Errorf("invalid key length: %d", len(key))
		}
		if err := encoder.WriteBytes(key, false); err != nil {
			return err
		}
	}

	return nil
}

func (obj *EscrowAccount) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if obj.Amount, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if obj.StartTime, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if obj.EndTime, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}

	for _, key := range []*ed25519.PublicKey{&obj.VaultAuthority, &obj.Sender, &obj.Mint, &obj.Receiver} {
		raw, err := decoder.ReadBytes(ed25519.PublicKeySize)
		if err != nil {
			return err
		}
		*key = append(ed25519.PublicKey(nil), raw...)
	}

	return nil
}

func (obj *EscrowAccount) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (obj *EscrowAccount) Unmarshal(data []byte) error {
	if len(data) != EscrowAccountSize {
		return ErrInvalidEscrowState
	}

	if err := bin.NewBorshDecoder(data).Decode(obj); err != nil {
		return ErrInvalidEscrowState
	}
	return nil
}

// IsReleased returns whether the escrowed funds have been paid out.
func (obj *EscrowAccount) IsReleased() bool {
	return obj.Amount == 0
}

// IsMatured returns whether the escrow can be unlocked at the unix timestamp now.
func (obj *EscrowAccount) IsMatured(now uint64) bool {
	return now >= obj.EndTime
}

func (obj *EscrowAccount) String() string {
	return fmt.Sprintf(
		"EscrowAccount{amount=%d,start_time=%d,end_time=%d,vault_authority=%s,sender=%s,mint=%s,receiver=%s}",
		obj.Amount,
		obj.StartTime,
		obj.EndTime,
		base58.Encode(obj.VaultAuthority),
		base58.Encode(obj.Sender),
		base58.Encode(obj.Mint),
		base58.Encode(obj.Receiver),
	)
}
