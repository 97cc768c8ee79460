package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	pgutil "github.com/code-payments/token-escrow/pkg/database/postgres"
	q "github.com/code-payments/token-escrow/pkg/database/query"
)

const (
	tableName = "escrow__core_escrow"

	allColumns = `id, address, vault_authority, vault_authority_bump, vault_token_account, sender, receiver, mint, amount, deposited_amount, start_time, end_time, state, slot, last_updated_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address string `db:"address"`

	VaultAuthority     string `db:"vault_authority"`
	VaultAuthorityBump uint   `db:"vault_authority_bump"`
	VaultTokenAccount  string `db:"vault_token_account"`

	Sender   string `db:"sender"`
	Receiver string `db:"receiver"`
	Mint     string `db:"mint"`

	Amount          uint64 `db:"amount"`
	DepositedAmount uint64 `db:"deposited_amount"`

	StartTime uint64 `db:"start_time"`
	EndTime   uint64 `db:"end_time"`

	State uint `db:"state"`

	Slot uint64 `db:"slot"`

	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *escrow.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Address: obj.Address,

		VaultAuthority:     obj.VaultAuthority,
		VaultAuthorityBump: uint(obj.VaultAuthorityBump),
		VaultTokenAccount:  obj.VaultTokenAccount,

		Sender:   obj.Sender,
		Receiver: obj.Receiver,
		Mint:     obj.Mint,

		Amount:          obj.Amount,
		DepositedAmount: obj.DepositedAmount,

		StartTime: obj.StartTime,
		EndTime:   obj.EndTime,

		State: uint(obj.State),

		Slot: obj.Slot,

		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *escrow.Record {
	return &escrow.Record{
		Id: uint64(obj.Id.Int64),

		Address: obj.Address,

		VaultAuthority:     obj.VaultAuthority,
		VaultAuthorityBump: uint8(obj.VaultAuthorityBump),
		VaultTokenAccount:  obj.VaultTokenAccount,

		Sender:   obj.Sender,
		Receiver: obj.Receiver,
		Mint:     obj.Mint,

		Amount:          obj.Amount,
		DepositedAmount: obj.DepositedAmount,

		StartTime: obj.StartTime,
		EndTime:   obj.EndTime,

		State: escrow.State(obj.State),

		Slot: obj.Slot,

		LastUpdatedAt: obj.LastUpdatedAt,
	}
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(address, vault_authority, vault_authority_bump, vault_token_account, sender, receiver, mint, amount, deposited_amount, start_time, end_time, state, slot, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)

			ON CONFLICT (address)
			DO UPDATE
				SET amount = $8, deposited_amount = GREATEST(` + tableName + `.deposited_amount, $9), state = $12, slot = $13, last_updated_at = $14
				WHERE ` + tableName + `.address = $1 AND ` + tableName + `.slot < $13

			RETURNING ` + allColumns

		m.LastUpdatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Address,

			m.VaultAuthority,
			m.VaultAuthorityBump,
			m.VaultTokenAccount,

			m.Sender,
			m.Receiver,
			m.Mint,

			m.Amount,
			m.DepositedAmount,

			m.StartTime,
			m.EndTime,

			m.State,

			m.Slot,

			m.LastUpdatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckNoRows(err, escrow.ErrStaleEscrowState)
	})
}

func dbGetByAddress(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, escrow.ErrEscrowNotFound)
	}
	return res, nil
}

func dbGetAllBySender(ctx context.Context, db *sqlx.DB, sender string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	return dbGetAllPaged(ctx, db, `(sender = $1)`, []interface{}{sender}, cursor, limit, direction)
}

func dbGetAllByReceiver(ctx context.Context, db *sqlx.DB, receiver string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	return dbGetAllPaged(ctx, db, `(receiver = $1)`, []interface{}{receiver}, cursor, limit, direction)
}

func dbGetAllUnlockable(ctx context.Context, db *sqlx.DB, now uint64, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	return dbGetAllPaged(ctx, db, `(state = $1 AND end_time <= $2)`, []interface{}{escrow.StateLocked, now}, cursor, limit, direction)
}

func dbGetAllPaged(ctx context.Context, db *sqlx.DB, condition string, opts []interface{}, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE ` + condition + `
	`

	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, escrow.ErrEscrowNotFound)
	}

	if len(res) == 0 {
		return nil, escrow.ErrEscrowNotFound
	}
	return res, nil
}

func dbGetCountByState(ctx context.Context, db *sqlx.DB, state escrow.State) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName + ` WHERE state = $1`
	err := db.GetContext(ctx, &res, query, state)
	if err != nil {
		return 0, err
	}

	return res, nil
}
