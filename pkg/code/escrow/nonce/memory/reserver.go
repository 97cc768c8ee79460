package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
)

type reservation struct {
	nonce     uint64
	expiresAt time.Time
}

type reserver struct {
	mu           sync.Mutex
	ttl          time.Duration
	now          func() time.Time
	reservations map[string]*reservation
}

// New returns a new in memory nonce.Reserver
func New(ttl time.Duration) nonce.Reserver {
	return newWithClock(ttl, time.Now)
}

func newWithClock(ttl time.Duration, now func() time.Time) *reserver {
	return &reserver{
		ttl:          ttl,
		now:          now,
		reservations: make(map[string]*reservation),
	}
}

// Reserve implements nonce.Reserver.Reserve
func (r *reserver) Reserve(_ context.Context, escrow string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.reservations[escrow]; ok && now.Before(existing.expiresAt) {
		return 0, nonce.ErrAlreadyReserved
	}

	value := nonce.New()
	r.reservations[escrow] = &reservation{
		nonce:     value,
		expiresAt: now.Add(r.ttl),
	}
	return value, nil
}

// Release implements nonce.Reserver.Release
func (r *reserver) Release(_ context.Context, escrow string, value uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.reservations[escrow]
	if !ok || existing.nonce != value || !r.now().Before(existing.expiresAt) {
		return nonce.ErrNotReserved
	}

	delete(r.reservations, escrow)
	return nil
}
