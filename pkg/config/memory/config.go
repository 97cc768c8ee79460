package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/token-escrow/pkg/config"
)

var errInduced = errors.New("in memory config: induced error")

// Config is a settable in memory config.Config, for tests and overrides
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	failing  bool
	shutdown bool
}

// NewConfig returns a config holding value. A nil value means no value is set.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.failing:
		return nil, errInduced
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

func (c *Config) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
}

func (c *Config) SetValue(value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

// ClearValue makes subsequent calls to Get return config.ErrNoValue
func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceErrors makes subsequent calls to Get fail until StopInducingErrors
func (c *Config) InduceErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = true
}

func (c *Config) StopInducingErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = false
}
