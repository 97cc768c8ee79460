// Package async holds the contract shared by background workers.
package async

import (
	"context"
	"time"
)

// Service is a background worker that polls on interval until ctx is done.
// Start blocks for the lifetime of the worker.
type Service interface {
	Start(ctx context.Context, interval time.Duration) error
}
