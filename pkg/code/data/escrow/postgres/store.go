package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed escrow.Store
func New(db *sql.DB) escrow.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Save implements escrow.Store.Save
func (s *store) Save(ctx context.Context, record *escrow.Record) error {
	model, err := toModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	res := fromModel(model)
	res.CopyTo(record)

	return nil
}

// GetByAddress implements escrow.Store.GetByAddress
func (s *store) GetByAddress(ctx context.Context, address string) (*escrow.Record, error) {
	model, err := dbGetByAddress(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetAllBySender implements escrow.Store.GetAllBySender
func (s *store) GetAllBySender(ctx context.Context, sender string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*escrow.Record, error) {
	return fromModels(dbGetAllBySender(ctx, s.db, sender, cursor, limit, direction))
}

// GetAllByReceiver implements escrow.Store.GetAllByReceiver
func (s *store) GetAllByReceiver(ctx context.Context, receiver string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*escrow.Record, error) {
	return fromModels(dbGetAllByReceiver(ctx, s.db, receiver, cursor, limit, direction))
}

// GetAllUnlockable implements escrow.Store.GetAllUnlockable
func (s *store) GetAllUnlockable(ctx context.Context, now uint64, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*escrow.Record, error) {
	return fromModels(dbGetAllUnlockable(ctx, s.db, now, cursor, limit, direction))
}

// GetCountByState implements escrow.Store.GetCountByState
func (s *store) GetCountByState(ctx context.Context, state escrow.State) (uint64, error) {
	return dbGetCountByState(ctx, s.db, state)
}

func fromModels(models []*model, err error) ([]*escrow.Record, error) {
	if err != nil {
		return nil, err
	}

	res := make([]*escrow.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}
