package unlocker

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
	"github.com/code-payments/token-escrow/pkg/database/query"
	"github.com/code-payments/token-escrow/pkg/metrics"
	"github.com/code-payments/token-escrow/pkg/retry"
	"github.com/code-payments/token-escrow/pkg/retry/backoff"
	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

const (
	maxSubmissionBackoff = 5 * time.Second
)

func (p *service) worker(serviceCtx context.Context, interval time.Duration) error {
	delay := interval
	var cursor query.Cursor

	err := retry.Loop(
		func() (err error) {
			select {
			case <-serviceCtx.Done():
				return serviceCtx.Err()
			case <-time.After(delay):
			}

			if p.conf.disabled.Get(serviceCtx) {
				return nil
			}

			cursor, err = p.processBatch(serviceCtx, cursor)
			return err
		},
		retry.NonRetriableErrors(context.Canceled),
	)

	return err
}

// processBatch unlocks one batch of matured escrows after cursor, and returns
// the cursor for the next batch.
func (p *service) processBatch(ctx context.Context, cursor query.Cursor) (query.Cursor, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "processBatch")
	defer tracer.End()

	now := p.ledger.UnixTimestamp()

	items, err := p.data.GetAllUnlockable(
		ctx,
		now,
		cursor,
		p.conf.batchSize.Get(ctx),
		query.Ascending,
	)
	if err == escrow.ErrEscrowNotFound {
		return query.EmptyCursor, nil
	} else if err != nil {
		tracer.OnError(err)
		return query.EmptyCursor, err
	}

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(record *escrow.Record) {
			defer wg.Done()

			if err := p.handle(ctx, record); err != nil {
				tracer.OnError(err)
			}
		}(item)
	}
	wg.Wait()

	tracer.AddAttribute("batch_size", len(items))
	return query.ToCursor(items[len(items)-1].Id), nil
}

func (p *service) handle(ctx context.Context, record *escrow.Record) error {
	log := p.log.WithFields(logrus.Fields{
		"method":   "handle",
		"escrow":   record.Address,
		"receiver": record.Receiver,
		"amount":   record.Amount,
	})

	value, err := p.nonces.Reserve(ctx, record.Address)
	if err == nonce.ErrAlreadyReserved {
		log.Trace("unlock already in flight")
		return nil
	} else if err != nil {
		log.WithError(err).Warn("failure reserving nonce")
		return err
	}
	log = log.WithField("nonce", value)

	txn, err := p.makeUnlockTransaction(record, value)
	if err != nil {
		log.WithError(err).Warn("failure making unlock transaction")
		return err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	// Every attempt is signed against a fresh blockhash, so an attempt that
	// outlived its blockhash is retried rather than dropped.
	attempts, err := retry.Retry(
		func() error {
			txn.SetBlockhash(p.ledger.RecentBlockhash())
			if err := txn.Sign(p.feePayer); err != nil {
				return err
			}

			_, err := p.ledger.Execute(ctx, txn)
			return err
		},
		retry.Limit(uint(p.conf.maxSubmissionAttempts.Get(ctx))),
		retry.NonRetriableIf(isProcessed),
		retry.NonRetriableErrors(context.Canceled),
		retry.Backoff(backoff.BinaryExponential(p.conf.submissionBackoff.Get(ctx)), maxSubmissionBackoff),
	)
	log = log.WithField("attempts", attempts)

	if err != nil {
		recordUnlockFailedEvent(ctx, record, err)

		// The escrow hadn't matured on the ledger yet, so it can be picked up
		// again without waiting out the reservation.
		if token_escrow.GetErrorKind(err) == token_escrow.ErrorKindTimingViolation {
			log.WithError(err).Debug("escrow not yet matured on the ledger")
			return p.nonces.Release(ctx, record.Address, value)
		}

		log.WithError(err).Warn("failure submitting unlock transaction")
		return err
	}

	log.Debug("escrow unlocked")
	recordUnlockedEvent(ctx, record)
	return nil
}

func (p *service) makeUnlockTransaction(record *escrow.Record, value uint64) (solana.Transaction, error) {
	decoded := make(map[string][]byte)
	for name, address := range map[string]string{
		"escrow":   record.Address,
		"sender":   record.Sender,
		"receiver": record.Receiver,
		"mint":     record.Mint,
	} {
		key, err := base58.Decode(address)
		if err != nil {
			return solana.Transaction{}, errors.Wrapf(err, "invalid %s address", name)
		}
		decoded[name] = key
	}

	accounts, err := token_escrow.GetUnlockInstructionAccounts(
		decoded["escrow"],
		decoded["sender"],
		decoded["receiver"],
		decoded["mint"],
	)
	if err != nil {
		return solana.Transaction{}, err
	}

	txn := solana.NewTransaction(
		p.feePayer.Public().(ed25519.PublicKey),
		token_escrow.NewUnlockInstruction(accounts, &token_escrow.UnlockInstructionArgs{
			Nonce: value,
		}),
	)
	return txn, nil
}

// isProcessed returns whether the ledger reached a verdict on the transaction,
// which resubmitting can't change.
func isProcessed(err error) bool {
	var txnErr *solana.TransactionError
	if !errors.As(err, &txnErr) {
		return false
	}
	return txnErr.ErrorKey() != solana.TransactionErrorBlockhashNotFound
}
