package account

import (
	"context"

	"github.com/code-payments/token-escrow/pkg/database/query"
)

type Store interface {
	// Get gets the committed state of an account
	Get(ctx context.Context, address string) (*Record, error)

	// GetBatch is like Get, but for multiple accounts. Accounts that don't
	// exist are omitted from the result.
	GetBatch(ctx context.Context, addresses ...string) (map[string]*Record, error)

	// SaveBatch saves the state of many accounts atomically. ErrStaleAccountState
	// is returned, and nothing is saved, if any record is at an older slot than
	// what is stored.
	SaveBatch(ctx context.Context, records ...*Record) error

	// GetAllByOwner gets all accounts owned by the provided program
	GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetLatestSlot gets the highest slot any account was saved at, or 0 if
	// nothing has been saved
	GetLatestSlot(ctx context.Context) (uint64, error)
}
