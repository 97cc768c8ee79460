package escrow

import (
	"context"

	"github.com/code-payments/token-escrow/pkg/database/query"
)

type Store interface {
	// Save saves an escrow record. Updates observed at a slot at or before the
	// stored slot are rejected with ErrStaleEscrowState.
	Save(ctx context.Context, record *Record) error

	// GetByAddress gets an escrow by its state account address
	GetByAddress(ctx context.Context, address string) (*Record, error)

	// GetAllBySender gets all escrows funded by a sender
	GetAllBySender(ctx context.Context, sender string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetAllByReceiver gets all escrows payable to a receiver
	GetAllByReceiver(ctx context.Context, receiver string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetAllUnlockable gets all locked escrows whose end time is at or before now
	GetAllUnlockable(ctx context.Context, now uint64, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetCountByState returns the number of escrows with the stored state
	GetCountByState(ctx context.Context, state State) (uint64, error)
}
