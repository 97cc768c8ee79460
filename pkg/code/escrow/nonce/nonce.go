package nonce

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultReservationTTL = time.Minute
)

var (
	ErrAlreadyReserved = errors.New("unlock nonce already reserved")
	ErrNotReserved     = errors.New("unlock nonce not reserved")
)

// Reserver hands out the nonces used to disambiguate Unlock instructions, at
// most one live reservation per escrow. An escrow with a live reservation has
// an unlock in flight, and a new one must not be submitted until the
// reservation is released or expires.
type Reserver interface {
	// Reserve reserves a fresh nonce for the escrow. ErrAlreadyReserved is
	// returned if a reservation is live.
	Reserve(ctx context.Context, escrow string) (uint64, error)

	// Release releases the reservation of nonce for the escrow. ErrNotReserved
	// is returned if the escrow isn't reserved with nonce.
	Release(ctx context.Context, escrow string, nonce uint64) error
}

// New returns a random nonce.
func New() uint64 {
	id := uuid.New()
	return binary.LittleEndian.Uint64(id[:8])
}
