package common

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var errInvalidKeyLength = errors.New("key must be an ed25519 public or private key")

// Key is an ed25519 public or private key along with its base58 encoding.
type Key struct {
	raw     []byte
	encoded string
}

func NewKeyFromBytes(value []byte) (*Key, error) {
	if !isKeyLength(value) {
		return nil, errInvalidKeyLength
	}

	return &Key{
		raw:     append([]byte(nil), value...),
		encoded: base58.Encode(value),
	}, nil
}

func NewKeyFromString(value string) (*Key, error) {
	raw, err := base58.Decode(value)
	if err != nil {
		return nil, errors.Wrap(err, "error decoding string as base58")
	}
	return NewKeyFromBytes(raw)
}

// NewRandomKey generates a new private key.
func NewRandomKey() (*Key, error) {
	_, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "error generating private key")
	}
	return NewKeyFromBytes(privateKey)
}

func (k *Key) ToBytes() []byte {
	return k.raw
}

func (k *Key) ToBase58() string {
	return k.encoded
}

func (k *Key) IsPublic() bool {
	return len(k.raw) == ed25519.PublicKeySize
}

func (k *Key) Validate() error {
	if k == nil {
		return errors.New("key is nil")
	}
	if !isKeyLength(k.raw) {
		return errInvalidKeyLength
	}
	if base58.Encode(k.raw) != k.encoded {
		return errors.New("bytes and string representation don't match")
	}
	return nil
}

func isKeyLength(value []byte) bool {
	return len(value) == ed25519.PublicKeySize || len(value) == ed25519.PrivateKeySize
}
