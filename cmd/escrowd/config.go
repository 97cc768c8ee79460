package main

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/app"
	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
	pg "github.com/code-payments/token-escrow/pkg/database/postgres"
	"github.com/code-payments/token-escrow/pkg/ledger"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

type config struct {
	// Store is where ledger accounts and indexed escrows are kept. Either
	// memory or postgres.
	Store    string    `mapstructure:"store"`
	Postgres pg.Config `mapstructure:"postgres"`

	// Unlock nonces are reserved in memory when no redis address is set
	RedisAddress string        `mapstructure:"redis_address"`
	NonceTTL     time.Duration `mapstructure:"nonce_ttl"`

	// The ledger resumes from the latest persisted slot, or StartingSlot if
	// that is higher
	StartingSlot    uint64 `mapstructure:"starting_slot"`
	MaxBlockhashAge int    `mapstructure:"max_blockhash_age"`

	// FeePayer is the base58 encoded private key paying for unlocks. A new
	// key is generated when unset.
	FeePayer        string `mapstructure:"fee_payer"`
	FeePayerAirdrop uint64 `mapstructure:"fee_payer_airdrop"`

	IndexerWorkers   uint   `mapstructure:"indexer_workers"`
	IndexerQueueSize uint   `mapstructure:"indexer_queue_size"`
	BackfillSchedule string `mapstructure:"backfill_schedule"`

	UnlockInterval time.Duration `mapstructure:"unlock_interval"`

	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

var defaultConfig = config{
	Store: storeMemory,

	NonceTTL: nonce.DefaultReservationTTL,

	MaxBlockhashAge: ledger.DefaultMaxBlockhashAge,

	FeePayerAirdrop: 1_000_000_000_000,

	IndexerWorkers:   16,
	IndexerQueueSize: 10_000,
	BackfillSchedule: "@every 5m",

	UnlockInterval: time.Second,

	RequestsPerSecond: 50,
}

func loadConfig(raw app.Config) (*config, error) {
	c := defaultConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "invalid app config")
	}

	switch c.Store {
	case storeMemory, storePostgres:
	default:
		return nil, errors.Errorf("unsupported store: %s", c.Store)
	}

	if c.MaxBlockhashAge <= 0 {
		return nil, errors.New("max_blockhash_age must be positive")
	}

	if c.IndexerWorkers == 0 {
		return nil, errors.New("indexer_workers must be positive")
	}

	return &c, nil
}
