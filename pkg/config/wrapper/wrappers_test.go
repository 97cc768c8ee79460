package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/config"
	"github.com/code-payments/token-escrow/pkg/config/memory"
)

func TestUint64Config(t *testing.T) {
	ctx := context.Background()
	override := memory.NewConfig(nil)
	c := NewUint64Config(override, 10)

	assert.EqualValues(t, 10, c.Get(ctx))

	override.SetValue(uint64(20))
	assert.EqualValues(t, 20, c.Get(ctx))

	override.SetValue(uint(30))
	assert.EqualValues(t, 30, c.Get(ctx))

	override.SetValue([]byte("40"))
	assert.EqualValues(t, 40, c.Get(ctx))

	// Bad values keep the last known value
	override.SetValue([]byte("not a number"))
	actual, err := c.GetSafe(ctx)
	assert.Error(t, err)
	assert.EqualValues(t, 40, actual)

	override.SetValue("50")
	actual, err = c.GetSafe(ctx)
	assert.Equal(t, ErrUnsupportedConversion, err)
	assert.EqualValues(t, 40, actual)

	override.SetValue(uint64(60))
	override.InduceErrors()
	actual, err = c.GetSafe(ctx)
	assert.Error(t, err)
	assert.EqualValues(t, 40, actual)

	override.StopInducingErrors()
	override.ClearValue()
	assert.EqualValues(t, 10, c.Get(ctx))

	c.Shutdown()
	_, err = c.GetSafe(ctx)
	assert.Equal(t, config.ErrShutdown, err)
}

func TestBoolConfig(t *testing.T) {
	ctx := context.Background()
	override := memory.NewConfig(nil)
	c := NewBoolConfig(override, true)

	assert.True(t, c.Get(ctx))

	override.SetValue(false)
	assert.False(t, c.Get(ctx))

	override.SetValue([]byte("true"))
	assert.True(t, c.Get(ctx))

	override.SetValue([]byte("maybe"))
	actual, err := c.GetSafe(ctx)
	assert.Error(t, err)
	assert.True(t, actual)

	override.SetValue(1)
	_, err = c.GetSafe(ctx)
	assert.Equal(t, ErrUnsupportedConversion, err)
}

func TestDurationConfig(t *testing.T) {
	ctx := context.Background()
	override := memory.NewConfig(nil)
	c := NewDurationConfig(override, time.Second)

	assert.Equal(t, time.Second, c.Get(ctx))

	override.SetValue(time.Minute)
	assert.Equal(t, time.Minute, c.Get(ctx))

	override.SetValue([]byte("250ms"))
	actual, err := c.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, actual)

	override.SetValue([]byte("soon"))
	actual, err = c.GetSafe(ctx)
	assert.Error(t, err)
	assert.Equal(t, 250*time.Millisecond, actual)
}
