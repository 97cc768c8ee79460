// Package binary encodes the COption fields used by SPL token state: a four
// byte little endian tag followed by the value, which is zeroed when absent.
package binary

import (
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

const optionTagSize = 4

func writeTag(encoder *bin.Encoder, present bool) error {
	var tag uint32
	if present {
		tag = 1
	}
	return encoder.WriteUint32(tag, bin.LE)
}

func readTag(decoder *bin.Decoder) (bool, error) {
	tag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return false, err
	}

	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Errorf("invalid option tag: %d", tag)
	}
}

// WriteKey writes a key that must be present.
func WriteKey(encoder *bin.Encoder, key ed25519.PublicKey) error {
	if len(key) != ed25519.PublicKeySize {
		return errors.Errorf("invalid key length: %d", len(key))
	}
	return encoder.WriteBytes(key, false)
}

func ReadKey(decoder *bin.Decoder) (ed25519.PublicKey, error) {
	raw, err := decoder.ReadBytes(ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return append(ed25519.PublicKey(nil), raw...), nil
}

// WriteOptionalKey writes key as a COption, with an empty key meaning None.
func WriteOptionalKey(encoder *bin.Encoder, key ed25519.PublicKey) error {
	if err := writeTag(encoder, len(key) > 0); err != nil {
		return err
	}
	if len(key) == 0 {
		return encoder.WriteBytes(make([]byte, ed25519.PublicKeySize), false)
	}
	return WriteKey(encoder, key)
}

// ReadOptionalKey reads a COption key, returning nil for None.
func ReadOptionalKey(decoder *bin.Decoder) (ed25519.PublicKey, error) {
	present, err := readTag(decoder)
	if err != nil {
		return nil, err
	}

	key, err := ReadKey(decoder)
	if err != nil || !present {
		return nil, err
	}
	return key, nil
}

func WriteOptionalUint64(encoder *bin.Encoder, v *uint64) error {
	if err := writeTag(encoder, v != nil); err != nil {
		return err
	}

	var value uint64
	if v != nil {
		value = *v
	}
	return encoder.WriteUint64(value, bin.LE)
}

func ReadOptionalUint64(decoder *bin.Decoder) (*uint64, error) {
	present, err := readTag(decoder)
	if err != nil {
		return nil, err
	}

	value, err := decoder.ReadUint64(bin.LE)
	if err != nil || !present {
		return nil, err
	}
	return &value, nil
}

// OptionalKeySize is the encoded size of a COption key.
const OptionalKeySize = optionTagSize + ed25519.PublicKeySize

// OptionalUint64Size is the encoded size of a COption u64.
const OptionalUint64Size = optionTagSize + 8
