package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/token-escrow/pkg/database/query"
	"github.com/code-payments/token-escrow/pkg/ledger/account"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed account.Store
func New(db *sql.DB) account.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Get implements account.Store.Get
func (s *store) Get(ctx context.Context, address string) (*account.Record, error) {
	model, err := dbGet(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

// GetBatch implements account.Store.GetBatch
func (s *store) GetBatch(ctx context.Context, addresses ...string) (map[string]*account.Record, error) {
	models, err := dbGetBatch(ctx, s.db, addresses...)
	if err != nil {
		return nil, err
	}

	res := make(map[string]*account.Record, len(models))
	for _, model := range models {
		res[model.Address] = fromModel(model)
	}
	return res, nil
}

// SaveBatch implements account.Store.SaveBatch
func (s *store) SaveBatch(ctx context.Context, records ...*account.Record) error {
	models := make([]*model, len(records))
	for i, record := range records {
		model, err := toModel(record)
		if err != nil {
			return err
		}
		models[i] = model
	}

	if err := dbSaveBatch(ctx, s.db, models...); err != nil {
		return err
	}

	for i, model := range models {
		fromModel(model).CopyTo(records[i])
	}
	return nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*account.Record, error) {
	models, err := dbGetAllByOwner(ctx, s.db, owner, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	res := make([]*account.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}

// GetLatestSlot implements account.Store.GetLatestSlot
func (s *store) GetLatestSlot(ctx context.Context) (uint64, error) {
	return dbGetLatestSlot(ctx, s.db)
}
