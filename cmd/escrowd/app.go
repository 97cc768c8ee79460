package main

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"net/http"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/token-escrow/pkg/app"
	"github.com/code-payments/token-escrow/pkg/code/common"
	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	memory_escrow_store "github.com/code-payments/token-escrow/pkg/code/data/escrow/memory"
	postgres_escrow_store "github.com/code-payments/token-escrow/pkg/code/data/escrow/postgres"
	"github.com/code-payments/token-escrow/pkg/code/escrow/indexer"
	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
	memory_nonce_reserver "github.com/code-payments/token-escrow/pkg/code/escrow/nonce/memory"
	redis_nonce_reserver "github.com/code-payments/token-escrow/pkg/code/escrow/nonce/redis"
	"github.com/code-payments/token-escrow/pkg/code/escrow/unlocker"
	http_server "github.com/code-payments/token-escrow/pkg/code/server/http"
	pg "github.com/code-payments/token-escrow/pkg/database/postgres"
	token_escrow_program "github.com/code-payments/token-escrow/pkg/escrow"
	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/ledger/account"
	memory_account_store "github.com/code-payments/token-escrow/pkg/ledger/account/memory"
	postgres_account_store "github.com/code-payments/token-escrow/pkg/ledger/account/postgres"
	"github.com/code-payments/token-escrow/pkg/ledger/native"
	"github.com/code-payments/token-escrow/pkg/metrics"
	"github.com/code-payments/token-escrow/pkg/rate"
)

// escrowApp runs the ledger with the escrow program, keeps the escrow index
// current, unlocks matured escrows and serves the HTTP API.
type escrowApp struct {
	log *logrus.Entry

	db          *sql.DB
	redisClient goredis.UniversalClient

	bank     *ledger.Bank
	data     escrow.Store
	indexer  *indexer.Indexer
	nonces   nonce.Reserver
	feePayer ed25519.PrivateKey
	handler  http.Handler

	cron *cron.Cron

	ctx        context.Context
	cancel     context.CancelFunc
	shutdownCh chan struct{}
	stopOnce   sync.Once
}

// Init implements app.App.Init.
func (a *escrowApp) Init(raw app.Config, metricsProvider *newrelic.Application) error {
	a.log = logrus.StandardLogger().WithField("type", "escrowd")

	conf, err := loadConfig(raw)
	if err != nil {
		return err
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())
	if metricsProvider != nil {
		a.ctx = metrics.WithNewRelicApp(a.ctx, metricsProvider)
	}
	a.shutdownCh = make(chan struct{})

	if err := a.initComponents(conf); err != nil {
		a.Stop()
		return err
	}

	if err := a.startWorkers(conf); err != nil {
		a.Stop()
		return err
	}

	return nil
}

func (a *escrowApp) initComponents(conf *config) error {
	var accounts account.Store
	switch conf.Store {
	case storePostgres:
		db, err := pg.NewFromConfig(&conf.Postgres)
		if err != nil {
			return errors.Wrap(err, "error connecting to postgres")
		}
		a.db = db

		accounts = postgres_account_store.New(db)
		a.data = postgres_escrow_store.New(db)
	default:
		accounts = memory_account_store.New()
		a.data = memory_escrow_store.New()
	}

	if len(conf.RedisAddress) > 0 {
		a.redisClient = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs: []string{conf.RedisAddress},
		})
		if err := a.redisClient.Ping(a.ctx).Err(); err != nil {
			return errors.Wrap(err, "error connecting to redis")
		}
		a.nonces = redis_nonce_reserver.New(a.redisClient, conf.NonceTTL)
	} else {
		a.nonces = memory_nonce_reserver.New(conf.NonceTTL)
	}

	a.indexer = indexer.New(
		a.data,
		indexer.WithWorkers(conf.IndexerWorkers),
		indexer.WithQueueSize(conf.IndexerQueueSize),
	)

	bank, err := ledger.NewBank(
		a.ctx,
		accounts,
		ledger.WithPrograms(append(native.Programs(), token_escrow_program.NewProcessor())...),
		ledger.WithObservers(a.indexer),
		ledger.WithStartingSlot(conf.StartingSlot),
		ledger.WithMaxBlockhashAge(conf.MaxBlockhashAge),
	)
	if err != nil {
		return errors.Wrap(err, "error starting bank")
	}
	a.bank = bank
	a.log.WithField("slot", bank.Slot()).Info("ledger resumed")

	feePayer, err := loadFeePayer(conf.FeePayer)
	if err != nil {
		return err
	}
	a.feePayer = feePayer

	if conf.FeePayerAirdrop > 0 {
		if _, err := a.bank.Airdrop(a.ctx, feePayer.Public().(ed25519.PublicKey), conf.FeePayerAirdrop); err != nil {
			return errors.Wrap(err, "error funding fee payer")
		}
	}
	a.log.WithField("fee_payer", base58.Encode(feePayer.Public().(ed25519.PublicKey))).Info("unlock fee payer loaded")

	var limiter rate.Limiter = &rate.NoLimiter{}
	if conf.RequestsPerSecond > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(conf.RequestsPerSecond))
	}
	a.handler = http_server.NewHandler(a.data, a.bank, limiter)

	return nil
}

func (a *escrowApp) startWorkers(conf *config) error {
	a.backfill()

	a.cron = cron.New()
	if _, err := a.cron.AddFunc(conf.BackfillSchedule, a.backfill); err != nil {
		return errors.Wrap(err, "invalid backfill schedule")
	}
	a.cron.Start()

	unlockService := unlocker.New(a.data, a.nonces, a.bank, a.feePayer, unlocker.WithEnvConfigs())
	go func() {
		err := unlockService.Start(a.ctx, conf.UnlockInterval)
		if err != nil && err != context.Canceled {
			a.log.WithError(err).Warn("unlocker stopped unexpectedly")
			a.Stop()
		}
	}()

	return nil
}

// backfill reconciles the index with the ledger, covering updates dropped
// while the indexer queue was full.
func (a *escrowApp) backfill() {
	updated, err := a.indexer.Backfill(a.ctx, a.bank)
	if err != nil {
		a.log.WithError(err).Warn("failure backfilling escrow index")
		return
	}
	a.log.WithField("updated", updated).Debug("backfilled escrow index")
}

// Handler implements app.App.Handler.
func (a *escrowApp) Handler() http.Handler {
	return a.handler
}

// ShutdownChan implements app.App.ShutdownChan.
func (a *escrowApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop.
func (a *escrowApp) Stop() {
	a.stopOnce.Do(func() {
		if a.cron != nil {
			<-a.cron.Stop().Done()
		}
		a.cancel()

		if a.indexer != nil {
			a.indexer.Close()
		}
		if a.redisClient != nil {
			if err := a.redisClient.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing redis client")
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing database")
			}
		}

		close(a.shutdownCh)
	})
}

func loadFeePayer(encoded string) (ed25519.PrivateKey, error) {
	var payer *common.Account
	var err error
	if len(encoded) == 0 {
		payer, err = common.NewRandomAccount()
	} else {
		payer, err = common.NewAccountFromPrivateKeyString(encoded)
	}
	if err != nil {
		return nil, errors.Wrap(err, "invalid fee payer")
	}
	return payer.ToSigner()
}
