package retry

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/code-payments/token-escrow/pkg/retry/backoff"
)

func TestLimit(t *testing.T) {
	strategy := Limit(2)
	assert.True(t, strategy(1, errors.New("failed")))
	assert.False(t, strategy(2, errors.New("failed")))
}

func TestNonRetriableErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	strategy := NonRetriableErrors(errA, errB)
	assert.False(t, strategy(1, errA))
	assert.False(t, strategy(1, errors.Wrap(errB, "wrapped")))
	assert.True(t, strategy(1, errors.New("other")))
}

func TestPredicates(t *testing.T) {
	isTimeout := func(err error) bool { return err.Error() == "timeout" }

	assert.True(t, RetriableIf(isTimeout)(1, errors.New("timeout")))
	assert.False(t, RetriableIf(isTimeout)(1, errors.New("other")))

	assert.False(t, NonRetriableIf(isTimeout)(1, errors.New("timeout")))
	assert.True(t, NonRetriableIf(isTimeout)(1, errors.New("other")))
}

func TestBackoff(t *testing.T) {
	recorder := withRecordingSleeper(t)

	strategy := Backoff(backoff.BinaryExponential(100*time.Millisecond), 500*time.Millisecond)
	for attempts := uint(1); attempts <= 5; attempts++ {
		assert.True(t, strategy(attempts, errors.New("failed")))
	}

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}, recorder.delays)
}
