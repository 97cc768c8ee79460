package backoff

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	s := Constant(time.Second)
	for attempts := uint(1); attempts < 5; attempts++ {
		assert.Equal(t, time.Second, s(attempts))
	}
}

func TestLinear(t *testing.T) {
	s := Linear(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, s(1))
	assert.Equal(t, 500*time.Millisecond, s(2))
	assert.Equal(t, time.Second, s(4))
	assert.EqualValues(t, math.MaxInt64, s(math.MaxUint32*16))
}

func TestExponential(t *testing.T) {
	s := Exponential(time.Second, 3)
	assert.Equal(t, time.Second, s(1))
	assert.Equal(t, 3*time.Second, s(2))
	assert.Equal(t, 9*time.Second, s(3))

	s = BinaryExponential(time.Second)
	assert.Equal(t, 8*time.Second, s(4))
	assert.EqualValues(t, math.MaxInt64, s(100))
}
