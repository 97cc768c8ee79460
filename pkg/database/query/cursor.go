package query

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Cursor is the big endian encoded id of the last record in a page
type Cursor []byte

var (
	EmptyCursor Cursor = Cursor([]byte{})

	ErrInvalidCursor = errors.New("invalid cursor")
)

func ToCursor(val uint64) Cursor {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return b
}

// FromBase58 parses a cursor previously encoded with ToBase58
func FromBase58(val string) (Cursor, error) {
	decoded, err := base58.Decode(val)
	if err != nil || len(decoded) != 8 {
		return nil, ErrInvalidCursor
	}
	return decoded, nil
}

func (c Cursor) ToUint64() uint64 {
	return binary.BigEndian.Uint64(c)
}

func (c Cursor) ToBase58() string {
	return base58.Encode(c)
}
