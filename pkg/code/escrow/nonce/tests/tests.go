package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
)

// RunTests runs the conformance suite against a reserver created with ttl.
// advance must move the reserver's notion of time forward.
func RunTests(t *testing.T, r nonce.Reserver, ttl time.Duration, advance func(time.Duration), teardown func()) {
	for _, tf := range []func(t *testing.T, r nonce.Reserver, ttl time.Duration, advance func(time.Duration)){
		testReserveAndRelease,
		testExpiry,
		testIndependentEscrows,
	} {
		tf(t, r, ttl, advance)
		teardown()
	}
}

func testReserveAndRelease(t *testing.T, r nonce.Reserver, _ time.Duration, _ func(time.Duration)) {
	t.Run("testReserveAndRelease", func(t *testing.T) {
		ctx := context.Background()

		assert.Equal(t, nonce.ErrNotReserved, r.Release(ctx, "escrow", 1))

		first, err := r.Reserve(ctx, "escrow")
		require.NoError(t, err)

		_, err = r.Reserve(ctx, "escrow")
		assert.Equal(t, nonce.ErrAlreadyReserved, err)

		// Only the holder of the nonce can release it
		assert.Equal(t, nonce.ErrNotReserved, r.Release(ctx, "escrow", first+1))
		_, err = r.Reserve(ctx, "escrow")
		assert.Equal(t, nonce.ErrAlreadyReserved, err)

		require.NoError(t, r.Release(ctx, "escrow", first))
		assert.Equal(t, nonce.ErrNotReserved, r.Release(ctx, "escrow", first))

		second, err := r.Reserve(ctx, "escrow")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}

func testExpiry(t *testing.T, r nonce.Reserver, ttl time.Duration, advance func(time.Duration)) {
	t.Run("testExpiry", func(t *testing.T) {
		ctx := context.Background()

		first, err := r.Reserve(ctx, "escrow")
		require.NoError(t, err)

		advance(ttl / 2)
		_, err = r.Reserve(ctx, "escrow")
		assert.Equal(t, nonce.ErrAlreadyReserved, err)

		advance(ttl)
		assert.Equal(t, nonce.ErrNotReserved, r.Release(ctx, "escrow", first))

		second, err := r.Reserve(ctx, "escrow")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}

func testIndependentEscrows(t *testing.T, r nonce.Reserver, _ time.Duration, _ func(time.Duration)) {
	t.Run("testIndependentEscrows", func(t *testing.T) {
		ctx := context.Background()

		seen := make(map[uint64]struct{})
		for _, escrow := range []string{"escrow1", "escrow2", "escrow3"} {
			value, err := r.Reserve(ctx, escrow)
			require.NoError(t, err)

			_, ok := seen[value]
			assert.False(t, ok)
			seen[value] = struct{}{}
		}
	})
}
