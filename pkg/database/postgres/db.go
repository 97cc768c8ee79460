package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/retry"
)

const maxSerializationAttempts = 5

// ExecuteInTx runs fn in a transaction at the requested isolation, committing
// when fn succeeds. Transactions aborted by a serialization failure are
// retried from the start.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted
	}

	_, err := retry.Retry(
		func() error {
			return executeInTx(ctx, db, isolation, fn)
		},
		retry.Limit(maxSerializationAttempts),
		retry.RetriableIf(IsSerializationFailure),
	)
	return err
}

func executeInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		// Rollback releases the connection back to the pool
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(err, "failed to rollback transaction: %v", rollbackErr)
		}
		return err
	}

	return tx.Commit()
}
