package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync/atomic"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-escrow/pkg/database/query"
	"github.com/code-payments/token-escrow/pkg/ledger/account"
	"github.com/code-payments/token-escrow/pkg/metrics"
	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
	sync_util "github.com/code-payments/token-escrow/pkg/sync"
)

const (
	metricsStructName = "ledger.bank"

	DefaultLamportsPerSignature = 5000

	defaultLockStripes      = 1024
	programAccountsPageSize = 1000
)

// Bank executes transactions against an account.Store, one atomic commit per
// transaction.
type Bank struct {
	log *logrus.Entry

	store     account.Store
	clock     *monotonicClock
	locks     *sync_util.StripedLock
	programs  map[string]Program
	observers []Observer

	lamportsPerSignature uint64
	maxBlockhashAge      int

	slot        uint64
	blockhashes *blockhashQueue
}

type Option func(*Bank)

// WithPrograms registers programs that instructions can be addressed to.
func WithPrograms(programs ...Program) Option {
	return func(b *Bank) {
		for _, program := range programs {
			b.programs[base58.Encode(program.ID())] = program
		}
	}
}

// WithClock overrides the system clock.
func WithClock(clock Clock) Option {
	return func(b *Bank) {
		b.clock = &monotonicClock{clock: clock}
	}
}

// WithObservers registers observers notified after every commit.
func WithObservers(observers ...Observer) Option {
	return func(b *Bank) {
		b.observers = append(b.observers, observers...)
	}
}

// WithLamportsPerSignature overrides the per signature transaction fee.
func WithLamportsPerSignature(lamports uint64) Option {
	return func(b *Bank) {
		b.lamportsPerSignature = lamports
	}
}

// WithStartingSlot sets the lowest slot the bank resumes from. The bank
// never starts below the latest slot persisted in its store.
func WithStartingSlot(slot uint64) Option {
	return func(b *Bank) {
		b.slot = slot
	}
}

// WithMaxBlockhashAge sets how many of the most recent blockhashes a
// transaction may reference.
func WithMaxBlockhashAge(age int) Option {
	return func(b *Bank) {
		b.maxBlockhashAge = age
	}
}

// NewBank returns a bank resuming from the latest slot persisted in store.
func NewBank(ctx context.Context, store account.Store, opts ...Option) (*Bank, error) {
	b := &Bank{
		log:                  logrus.StandardLogger().WithField("type", "ledger/bank"),
		store:                store,
		clock:                &monotonicClock{clock: SystemClock()},
		locks:                sync_util.NewStripedLock(defaultLockStripes),
		programs:             make(map[string]Program),
		lamportsPerSignature: DefaultLamportsPerSignature,
		maxBlockhashAge:      DefaultMaxBlockhashAge,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.maxBlockhashAge <= 0 {
		return nil, errors.New("max blockhash age must be positive")
	}

	latest, err := store.GetLatestSlot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error getting latest persisted slot")
	}
	if latest > b.slot {
		b.slot = latest
	}

	b.blockhashes = newBlockhashQueue(b.maxBlockhashAge)
	b.blockhashes.register(b.slot)

	b.log.WithField("slot", b.slot).Debug("bank started")

	return b, nil
}

// AddObserver registers an observer after construction.
func (b *Bank) AddObserver(observer Observer) {
	b.observers = append(b.observers, observer)
}

// Slot returns the most recently committed slot.
func (b *Bank) Slot() uint64 {
	return atomic.LoadUint64(&b.slot)
}

// RecentBlockhash returns the blockhash of the most recent slot, which new
// transactions should be signed against.
func (b *Bank) RecentBlockhash() solana.Blockhash {
	return b.blockhashes.recent()
}

// UnixTimestamp returns the current ledger time.
func (b *Bank) UnixTimestamp() uint64 {
	return b.clock.unixTimestamp()
}

// Fee returns the fee the transaction pays when processed.
func (b *Bank) Fee(txn solana.Transaction) uint64 {
	return b.lamportsPerSignature * uint64(txn.Message.Header.NumSignatures)
}

// Execute processes a signed transaction. Transactions that fail validation
// are rejected with a *solana.TransactionError and no Result. Transactions
// whose instructions fail are still processed, returning both a Result and
// its error.
func (b *Bank) Execute(ctx context.Context, txn solana.Transaction) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Execute")
	defer tracer.End()

	result, err := b.execute(ctx, txn)
	tracer.OnError(err)
	return result, err
}

func (b *Bank) execute(ctx context.Context, txn solana.Transaction) (*Result, error) {
	if err := txn.Message.Sanitize(); err != nil {
		return nil, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure, err)
	}

	if size := len(txn.Marshal()); size > solana.MaxTransactionSize {
		return nil, solana.NewTransactionError(solana.TransactionErrorTooLarge, errors.Errorf("%d bytes", size))
	}

	if err := txn.VerifySignatures(); err != nil {
		if errors.Is(err, solana.ErrMissingSignature) {
			return nil, solana.NewTransactionError(solana.TransactionErrorMissingSignatureForFee, err)
		}
		return nil, solana.NewTransactionError(solana.TransactionErrorSignatureFailure, err)
	}

	var signature solana.Signature
	copy(signature[:], txn.Signature())

	log := b.log.WithFields(logrus.Fields{
		"method":    "Execute",
		"signature": signature.String(),
	})

	var writeKeys, readKeys [][]byte
	for i, key := range txn.Message.Accounts {
		if txn.Message.IsWritable(i) {
			writeKeys = append(writeKeys, key)
		} else {
			readKeys = append(readKeys, key)
		}
	}

	release := b.locks.Acquire(writeKeys, readKeys)
	defer release()

	blockhash := txn.Message.RecentBlockhash
	switch live, duplicate := b.blockhashes.check(blockhash, signature); {
	case !live:
		return nil, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound, nil)
	case duplicate:
		return nil, solana.NewTransactionError(solana.TransactionErrorDuplicateSignature, nil)
	}

	accounts, err := b.load(ctx, txn.Message.Accounts...)
	if err != nil {
		log.WithError(err).Warn("failure loading accounts")
		return nil, err
	}

	fee := b.Fee(txn)
	payer, _ := accounts.get(txn.Message.Accounts[0])
	if !bytes.Equal(payer.owner, system.ProgramKey[:]) || payer.lamports < fee {
		return nil, solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee, nil)
	}

	// The fee is committed even if an instruction fails
	feeOnly := accounts.snapshot()
	for _, set := range []*workingSet{accounts, feeOnly} {
		charged, _ := set.get(txn.Message.Accounts[0])
		charged.lamports -= fee
		charged.modified = true
	}

	txnCtx := &transactionContext{
		ctx:           ctx,
		bank:          b,
		accounts:      accounts,
		unixTimestamp: b.clock.unixTimestamp(),
	}

	result := &Result{
		Signature: signature,
		Fee:       fee,
	}

	var txnErr *solana.TransactionError
	for i := range txn.Message.Instructions {
		ix, err := txn.Message.DecompileInstruction(i)
		if err != nil {
			return nil, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure, err)
		}

		ic := &InvokeContext{
			txn:     txnCtx,
			program: ix.Program,
			metas:   ix.Accounts,
			depth:   1,
		}

		if err := ic.process(ix); err != nil {
			txnErr = solana.TransactionErrorFromInstructionError(&solana.InstructionError{
				Index: i,
				Err:   err,
			})
			break
		}
	}

	toCommit := accounts
	if txnErr != nil {
		toCommit = feeOnly
	}

	slot, records, err := b.commit(ctx, toCommit)
	if err != nil {
		log.WithError(err).Warn("failure committing accounts")
		return nil, err
	}

	b.blockhashes.save(blockhash, signature)

	result.Slot = slot
	result.Logs = txnCtx.logs
	result.Err = txnErr

	for _, line := range result.Logs {
		log.Debug(line)
	}

	b.notify(ctx, slot, records)

	if txnErr != nil {
		log.WithError(txnErr).Debug("transaction failed")
		metrics.RecordCount(ctx, "ledger.transaction.failed", 1)
		return result, txnErr
	}

	metrics.RecordCount(ctx, "ledger.transaction.succeeded", 1)
	return result, nil
}

// Airdrop credits lamports to an account out of thin air.
func (b *Bank) Airdrop(ctx context.Context, to ed25519.PublicKey, lamports uint64) (uint64, error) {
	release := b.locks.Acquire([][]byte{to}, nil)
	defer release()

	accounts, err := b.load(ctx, to)
	if err != nil {
		return 0, err
	}

	a, _ := accounts.get(to)
	if a.lamports+lamports < a.lamports {
		return 0, errors.New("lamport overflow")
	}
	a.lamports += lamports
	a.modified = true

	slot, records, err := b.commit(ctx, accounts)
	if err != nil {
		return 0, err
	}

	b.notify(ctx, slot, records)
	return slot, nil
}

// GetAccountInfo implements solana.AccountReader.GetAccountInfo against the
// committed ledger state.
func (b *Bank) GetAccountInfo(ctx context.Context, key ed25519.PublicKey) (solana.AccountInfo, error) {
	record, err := b.store.Get(ctx, base58.Encode(key))
	if err == account.ErrAccountNotFound {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	} else if err != nil {
		return solana.AccountInfo{}, err
	}

	a, err := fromRecord(record)
	if err != nil {
		return solana.AccountInfo{}, err
	}
	if !a.exists() {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	return solana.AccountInfo{
		Data:       a.data,
		Owner:      a.owner,
		Lamports:   a.lamports,
		Executable: a.executable,
	}, nil
}

// GetProgramAccounts returns every committed account owned by program.
func (b *Bank) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*account.Record, error) {
	var res []*account.Record

	cursor := query.EmptyCursor
	for {
		page, err := b.store.GetAllByOwner(ctx, base58.Encode(program), cursor, programAccountsPageSize, query.Ascending)
		if err == account.ErrAccountNotFound {
			break
		} else if err != nil {
			return nil, err
		}

		res = append(res, page...)
		if len(page) < programAccountsPageSize {
			break
		}
		cursor = query.ToCursor(page[len(page)-1].Id)
	}

	return res, nil
}

func (b *Bank) program(id ed25519.PublicKey) (Program, bool) {
	program, ok := b.programs[base58.Encode(id)]
	return program, ok
}

func (b *Bank) load(ctx context.Context, keys ...ed25519.PublicKey) (*workingSet, error) {
	addresses := make([]string, len(keys))
	for i, key := range keys {
		addresses[i] = base58.Encode(key)
	}

	records, err := b.store.GetBatch(ctx, addresses...)
	if err != nil {
		return nil, errors.Wrap(err, "error loading accounts")
	}

	accounts := newWorkingSet()
	for i, key := range keys {
		record, ok := records[addresses[i]]
		if !ok {
			accounts.put(newEmptyAccount(key))
			continue
		}

		a, err := fromRecord(record)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid stored account %s", addresses[i])
		}
		accounts.put(a)
	}

	return accounts, nil
}

// commit must be called while holding the locks of every modified account.
func (b *Bank) commit(ctx context.Context, accounts *workingSet) (uint64, []*account.Record, error) {
	slot := atomic.AddUint64(&b.slot, 1)

	records := accounts.modified(slot)
	if len(records) > 0 {
		if err := b.store.SaveBatch(ctx, records...); err != nil {
			return 0, nil, err
		}
	}

	b.blockhashes.register(slot)
	return slot, records, nil
}

func (b *Bank) notify(ctx context.Context, slot uint64, records []*account.Record) {
	if len(records) == 0 {
		return
	}

	for _, observer := range b.observers {
		cloned := make([]*account.Record, len(records))
		for i, record := range records {
			c := record.Clone()
			cloned[i] = &c
		}
		observer.OnAccountsCommitted(ctx, slot, cloned)
	}
}
