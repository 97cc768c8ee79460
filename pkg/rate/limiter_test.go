package rate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNoLimiter(t *testing.T) {
	var l Limiter = NoLimiter{}
	for i := 0; i < 100; i++ {
		allowed, err := l.Allow("caller")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLocalRateLimiter_PerKey(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(3))

	for _, key := range []string{"10.0.0.1", "10.0.0.2"} {
		for i := 0; i < 3; i++ {
			allowed, err := l.Allow(key)
			require.NoError(t, err)
			assert.True(t, allowed, "request %d for %s", i, key)
		}

		allowed, err := l.Allow(key)
		require.NoError(t, err)
		assert.False(t, allowed)
	}
}

func TestLocalRateLimiter_FractionalLimit(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(0.5))

	allowed, err := l.Allow("caller")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow("caller")
	require.NoError(t, err)
	assert.False(t, allowed)
}
