package indexer

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/ledger/account"
	"github.com/code-payments/token-escrow/pkg/metrics"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
	sync_util "github.com/code-payments/token-escrow/pkg/sync"
)

const (
	metricsStructName = "indexer"

	droppedUpdateEventName = "EscrowIndexerDroppedUpdate"
	indexedCountMetricName = "EscrowIndexer_indexed"
)

// ProgramAccountSource lists every account owned by a program.
type ProgramAccountSource interface {
	GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*account.Record, error)
}

// Indexer keeps an escrow.Store in sync with the escrow state accounts on the
// ledger. Updates to the same account are applied in commit order.
type Indexer struct {
	log *logrus.Entry

	data    escrow.Store
	program string

	updates *sync_util.StripedChannel[*account.Record]
	workers sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

func New(data escrow.Store, opts ...Option) *Indexer {
	conf := defaultConfig()
	for _, opt := range opts {
		opt(conf)
	}

	i := &Indexer{
		log: logrus.StandardLogger().WithField("type", "escrow/indexer"),

		data:    data,
		program: base58.Encode(token_escrow.PROGRAM_ID),

		updates: sync_util.NewStripedChannel[*account.Record](conf.workers, conf.queueSize),
	}

	for id, channel := range i.updates.GetChannels() {
		i.workers.Add(1)
		go i.worker(id, channel)
	}

	return i
}

// OnAccountsCommitted implements ledger.Observer.OnAccountsCommitted
func (i *Indexer) OnAccountsCommitted(ctx context.Context, slot uint64, records []*account.Record) {
	i.closeMu.RLock()
	defer i.closeMu.RUnlock()

	if i.closed {
		return
	}

	for _, record := range records {
		if record.Owner != i.program {
			continue
		}

		if !i.updates.Send([]byte(record.Address), record) {
			i.log.WithFields(logrus.Fields{
				"address": record.Address,
				"slot":    slot,
			}).Warn("update queue is full, dropping escrow update")

			metrics.RecordEvent(ctx, droppedUpdateEventName, map[string]interface{}{
				"address": record.Address,
				"slot":    slot,
			})
		}
	}
}

// Backfill indexes every escrow state account currently on the ledger and
// returns the number of records that changed.
func (i *Indexer) Backfill(ctx context.Context, source ProgramAccountSource) (int, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Backfill")
	defer tracer.End()

	records, err := source.GetProgramAccounts(ctx, token_escrow.PROGRAM_ID)
	if err != nil {
		tracer.OnError(err)
		return 0, errors.Wrap(err, "error getting program accounts")
	}

	var indexed int
	for _, record := range records {
		updated, err := i.index(ctx, record)
		if err != nil {
			tracer.OnError(err)
			return indexed, err
		}

		if updated {
			indexed++
		}
	}

	tracer.AddAttribute("indexed", indexed)
	return indexed, nil
}

// Close stops accepting updates and waits for queued ones to be applied.
func (i *Indexer) Close() {
	i.closeMu.Lock()
	i.closed = true
	i.closeMu.Unlock()

	i.updates.Close()
	i.workers.Wait()
}

func (i *Indexer) worker(id int, channel <-chan *account.Record) {
	defer i.workers.Done()

	log := i.log.WithFields(logrus.Fields{
		"method": "worker",
		"worker": id,
	})

	for record := range channel {
		if _, err := i.index(context.Background(), record); err != nil {
			log.WithError(err).WithField("address", record.Address).Warn("failure indexing escrow")
		}
	}
}

// index saves the escrow state held by record, returning whether the store
// changed. Accounts that don't hold escrow state are skipped.
func (i *Indexer) index(ctx context.Context, record *account.Record) (bool, error) {
	log := i.log.WithFields(logrus.Fields{
		"method":  "index",
		"address": record.Address,
		"slot":    record.Slot,
	})

	if len(record.Data) != token_escrow.EscrowAccountSize {
		log.Debug("skipping account that isn't escrow state")
		return false, nil
	}

	var state token_escrow.EscrowAccount
	if err := state.Unmarshal(record.Data); err != nil {
		log.WithError(err).Warn("skipping undecodable escrow state")
		return false, nil
	}

	existing, err := i.data.GetByAddress(ctx, record.Address)
	switch err {
	case nil:
		err = existing.UpdateFromProgramAccount(&state, record.Slot)
	case escrow.ErrEscrowNotFound:
		existing, err = escrow.NewFromProgramAccount(record.Address, &state, record.Slot)
	default:
		return false, errors.Wrap(err, "error getting escrow record")
	}

	if err == escrow.ErrStaleEscrowState {
		return false, nil
	} else if errors.Is(err, escrow.ErrInvalidEscrow) {
		log.WithError(err).Warn("skipping invalid escrow state")
		return false, nil
	} else if err != nil {
		return false, err
	}

	err = i.data.Save(ctx, existing)
	if err == escrow.ErrStaleEscrowState {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "error saving escrow record")
	}

	log.WithFields(logrus.Fields{
		"state":  existing.State.String(),
		"amount": existing.Amount,
	}).Debug("escrow indexed")
	metrics.RecordCount(ctx, indexedCountMetricName, 1)

	return true, nil
}
