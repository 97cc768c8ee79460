package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/token-escrow/pkg/ledger/account"

	pgutil "github.com/code-payments/token-escrow/pkg/database/postgres"
	q "github.com/code-payments/token-escrow/pkg/database/query"
)

const (
	tableName = "ledger_accounts"

	allColumns = `id, address, owner, lamports, data, executable, slot, last_updated_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address    string `db:"address"`
	Owner      string `db:"owner"`
	Lamports   uint64 `db:"lamports"`
	Data       []byte `db:"data"`
	Executable bool   `db:"executable"`

	Slot uint64 `db:"slot"`

	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *account.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Address:       obj.Address,
		Owner:         obj.Owner,
		Lamports:      obj.Lamports,
		Data:          data,
		Executable:    obj.Executable,
		Slot:          obj.Slot,
		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *account.Record {
	var data []byte
	if len(obj.Data) > 0 {
		data = obj.Data
	}

	return &account.Record{
		Id:            uint64(obj.Id.Int64),
		Address:       obj.Address,
		Owner:         obj.Owner,
		Lamports:      obj.Lamports,
		Data:          data,
		Executable:    obj.Executable,
		Slot:          obj.Slot,
		LastUpdatedAt: obj.LastUpdatedAt,
	}
}

func dbSaveBatch(ctx context.Context, db *sqlx.DB, models ...*model) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(address, owner, lamports, data, executable, slot, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)

			ON CONFLICT (address)
			DO UPDATE
				SET owner = $2, lamports = $3, data = $4, executable = $5, slot = $6, last_updated_at = $7
				WHERE ` + tableName + `.address = $1 AND ` + tableName + `.slot <= $6

			RETURNING ` + allColumns

		now := time.Now()
		for _, m := range models {
			m.LastUpdatedAt = now

			err := tx.QueryRowxContext(
				ctx,
				query,
				m.Address,
				m.Owner,
				m.Lamports,
				m.Data,
				m.Executable,
				m.Slot,
				m.LastUpdatedAt.UTC(),
			).StructScan(m)
			if err != nil {
				return pgutil.CheckNoRows(err, account.ErrStaleAccountState)
			}
		}
		return nil
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}
	return res, nil
}

func dbGetBatch(ctx context.Context, db *sqlx.DB, addresses ...string) ([]*model, error) {
	res := []*model{}

	if len(addresses) == 0 {
		return res, nil
	}

	query, args, err := sqlx.In(`SELECT `+allColumns+`
		FROM `+tableName+`
		WHERE address IN (?)`,
		addresses,
	)
	if err != nil {
		return nil, err
	}

	err = db.SelectContext(ctx, &res, db.Rebind(query), args...)
	if err != nil && !pgutil.IsNoRows(err) {
		return nil, err
	}
	return res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE (owner = $1)
	`

	opts := []interface{}{owner}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}
	return res, nil
}

func dbGetLatestSlot(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var res uint64

	query := `SELECT COALESCE(MAX(slot), 0) FROM ` + tableName

	err := db.GetContext(ctx, &res, query)
	if err != nil {
		return 0, err
	}
	return res, nil
}
