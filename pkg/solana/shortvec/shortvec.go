// Package shortvec implements the compact-u16 length prefix used by the
// transaction wire format.
package shortvec

import (
	"fmt"
	"io"
	"math"
)

// maxEncodedBytes is the number of bytes needed to hold a uint16 in 7 bit groups.
const maxEncodedBytes = 3

// EncodeLen writes length as a compact-u16 and returns the number of bytes
// written. Lengths above math.MaxUint16 are rejected.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, fmt.Errorf("len must be in [0, %d]", math.MaxUint16)
	}

	var encoded [maxEncodedBytes]byte
	n := 0
	for {
		encoded[n] = byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			n++
			break
		}
		encoded[n] |= 0x80
		n++
	}

	return w.Write(encoded[:n])
}

// DecodeLen reads a compact-u16 from r.
func DecodeLen(r io.Reader) (int, error) {
	var val int
	var b [1]byte

	for i := 0; ; i++ {
		if i == maxEncodedBytes {
			return 0, fmt.Errorf("invalid size: more than %d bytes", maxEncodedBytes)
		}

		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}

		val |= int(b[0]&0x7f) << (i * 7)
		if b[0]&0x80 == 0 {
			break
		}
	}

	if val > math.MaxUint16 {
		return 0, fmt.Errorf("decoded len %d exceeds %d", val, math.MaxUint16)
	}
	return val, nil
}
