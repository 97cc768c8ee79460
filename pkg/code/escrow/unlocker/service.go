package unlocker

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/code-payments/token-escrow/pkg/code/async"
	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/solana"
)

// Ledger is the subset of the ledger the unlocker submits transactions to.
type Ledger interface {
	UnixTimestamp() uint64
	RecentBlockhash() solana.Blockhash
	Execute(ctx context.Context, txn solana.Transaction) (*ledger.Result, error)
}

type service struct {
	log  *logrus.Entry
	conf *conf

	data     escrow.Store
	nonces   nonce.Reserver
	ledger   Ledger
	feePayer ed25519.PrivateKey

	limiter *rate.Limiter
}

// New returns a service that submits an Unlock for every matured escrow,
// paying fees with feePayer.
func New(data escrow.Store, nonces nonce.Reserver, ledger Ledger, feePayer ed25519.PrivateKey, configProvider ConfigProvider) async.Service {
	return newService(data, nonces, ledger, feePayer, configProvider)
}

func newService(data escrow.Store, nonces nonce.Reserver, ledger Ledger, feePayer ed25519.PrivateKey, configProvider ConfigProvider) *service {
	conf := configProvider()

	limit := rate.Inf
	perSecond := conf.submissionsPerSecond.Get(context.Background())
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &service{
		log:  logrus.StandardLogger().WithField("service", "unlocker"),
		conf: conf,

		data:     data,
		nonces:   nonces,
		ledger:   ledger,
		feePayer: feePayer,

		limiter: rate.NewLimiter(limit, int(perSecond)),
	}
}

func (p *service) Start(ctx context.Context, interval time.Duration) error {
	go func() {
		err := p.worker(ctx, interval)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("unlock processing loop terminated unexpectedly")
		}
	}()

	go func() {
		err := p.metricsGaugeWorker(ctx)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("escrow metrics gauge loop terminated unexpectedly")
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}
