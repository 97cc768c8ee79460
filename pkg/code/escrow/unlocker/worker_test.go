package unlocker

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	memory_escrow_store "github.com/code-payments/token-escrow/pkg/code/data/escrow/memory"
	"github.com/code-payments/token-escrow/pkg/code/escrow/indexer"
	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
	memory_nonce_reserver "github.com/code-payments/token-escrow/pkg/code/escrow/nonce/memory"
	"github.com/code-payments/token-escrow/pkg/database/query"
	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/token"
	"github.com/code-payments/token-escrow/pkg/testutil"
)

type testEnv struct {
	ledger  *testutil.TestLedger
	data    escrow.Store
	indexer *indexer.Indexer
	nonces  nonce.Reserver

	feePayer ed25519.PrivateKey

	sender   ed25519.PrivateKey
	receiver ed25519.PublicKey
	mint     ed25519.PublicKey
}

// Records are only indexed on demand through backfill, so the store lags the
// ledger until then.
func setup(t *testing.T) *testEnv {
	testutil.DisableLogging()

	data := memory_escrow_store.New()
	idx := indexer.New(data, indexer.WithWorkers(1))
	t.Cleanup(idx.Close)

	l := testutil.NewTestLedger(t, 1000)

	authority := l.NewFundedKeypair()
	mint := l.CreateMint(authority, 0)

	sender := l.NewFundedKeypair()
	senderToken := l.CreateAssociatedTokenAccount(sender, sender.Public().(ed25519.PublicKey), mint)
	l.MintTo(authority, mint, senderToken, 1000)

	return &testEnv{
		ledger:   l,
		data:     data,
		indexer:  idx,
		nonces:   memory_nonce_reserver.New(nonce.DefaultReservationTTL),
		feePayer: l.NewFundedKeypair(),
		sender:   sender,
		receiver: testutil.GenerateSolanaKeys(t, 1)[0],
		mint:     mint,
	}
}

func (e *testEnv) backfill(t *testing.T) {
	_, err := e.indexer.Backfill(context.Background(), e.ledger.Bank)
	require.NoError(t, err)
}

func (e *testEnv) newService(l Ledger, overrides *testOverrides) *service {
	return newService(e.data, e.nonces, l, e.feePayer, withManualTestOverrides(overrides))
}

func (e *testEnv) receiverBalance(t *testing.T) uint64 {
	address, err := token.GetAssociatedAccount(e.receiver, e.mint)
	require.NoError(t, err)

	if _, err := e.ledger.Bank.GetAccountInfo(context.Background(), address); err == solana.ErrNoAccountInfo {
		return 0
	}
	return e.ledger.TokenBalance(address, e.mint)
}

func defaultOverrides() *testOverrides {
	return &testOverrides{
		batchSize:             10,
		maxSubmissionAttempts: 3,
	}
}

// fakeLedger lets tests skew the time used to select escrows and inject
// submission failures or expired blockhashes.
type fakeLedger struct {
	*ledger.Bank

	mu               sync.Mutex
	now              uint64
	failuresLeft     int
	staleBlockhashes int
	submissions      int
}

func (l *fakeLedger) RecentBlockhash() solana.Blockhash {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.staleBlockhashes > 0 {
		l.staleBlockhashes--
		return solana.Blockhash{}
	}
	return l.Bank.RecentBlockhash()
}

func (l *fakeLedger) UnixTimestamp() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now > 0 {
		return l.now
	}
	return l.Bank.UnixTimestamp()
}

func (l *fakeLedger) Execute(ctx context.Context, txn solana.Transaction) (*ledger.Result, error) {
	l.mu.Lock()
	l.submissions++
	if l.failuresLeft > 0 {
		l.failuresLeft--
		l.mu.Unlock()
		return nil, errors.New("ledger unavailable")
	}
	l.mu.Unlock()

	return l.Bank.Execute(ctx, txn)
}

func TestProcessBatch_UnlocksMaturedEscrows(t *testing.T) {
	env := setup(t)

	early := env.ledger.Deposit(env.sender, env.receiver, env.mint, 100, 2000)
	late := env.ledger.Deposit(env.sender, env.receiver, env.mint, 200, 3000)
	env.backfill(t)

	svc := env.newService(env.ledger.Bank, defaultOverrides())
	ctx := context.Background()

	// Nothing has matured
	cursor, err := svc.processBatch(ctx, query.EmptyCursor)
	require.NoError(t, err)
	assert.Empty(t, cursor)
	assert.EqualValues(t, 0, env.receiverBalance(t))

	env.ledger.SetTime(2500)
	cursor, err = svc.processBatch(ctx, query.EmptyCursor)
	require.NoError(t, err)
	assert.NotEmpty(t, cursor)
	assert.EqualValues(t, 100, env.receiverBalance(t))

	env.backfill(t)
	record, err := env.data.GetByAddress(ctx, base58.Encode(early))
	require.NoError(t, err)
	assert.Equal(t, escrow.StateReleased, record.State)

	env.ledger.SetTime(3000)
	_, err = svc.processBatch(ctx, query.EmptyCursor)
	require.NoError(t, err)
	assert.EqualValues(t, 300, env.receiverBalance(t))

	env.backfill(t)
	record, err = env.data.GetByAddress(ctx, base58.Encode(late))
	require.NoError(t, err)
	assert.Equal(t, escrow.StateReleased, record.State)

	count, err := env.data.GetCountByState(ctx, escrow.StateReleased)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestProcessBatch_ReservationPreventsResubmission(t *testing.T) {
	env := setup(t)

	env.ledger.Deposit(env.sender, env.receiver, env.mint, 100, 2000)
	env.backfill(t)
	env.ledger.SetTime(2000)

	fake := &fakeLedger{Bank: env.ledger.Bank}
	svc := env.newService(fake, defaultOverrides())

	_, err := svc.processBatch(context.Background(), query.EmptyCursor)
	require.NoError(t, err)
	assert.EqualValues(t, 100, env.receiverBalance(t))
	assert.Equal(t, 1, fake.submissions)

	// The store hasn't caught up yet, but the reservation is still live
	_, err = svc.processBatch(context.Background(), query.EmptyCursor)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.submissions)
}

func TestProcessBatch_RetriesTransientFailures(t *testing.T) {
	env := setup(t)

	env.ledger.Deposit(env.sender, env.receiver, env.mint, 100, 2000)
	env.backfill(t)
	env.ledger.SetTime(2000)

	fake := &fakeLedger{Bank: env.ledger.Bank, failuresLeft: 2}
	svc := env.newService(fake, defaultOverrides())

	_, err := svc.processBatch(context.Background(), query.EmptyCursor)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.submissions)
	assert.EqualValues(t, 100, env.receiverBalance(t))
}

func TestProcessBatch_RefreshesExpiredBlockhash(t *testing.T) {
	env := setup(t)

	env.ledger.Deposit(env.sender, env.receiver, env.mint, 100, 2000)
	env.backfill(t)
	env.ledger.SetTime(2000)

	fake := &fakeLedger{Bank: env.ledger.Bank, staleBlockhashes: 1}
	svc := env.newService(fake, defaultOverrides())

	_, err := svc.processBatch(context.Background(), query.EmptyCursor)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.submissions)
	assert.EqualValues(t, 100, env.receiverBalance(t))
}

func TestProcessBatch_GivesUpAfterMaxAttempts(t *testing.T) {
	env := setup(t)

	env.ledger.Deposit(env.sender, env.receiver, env.mint, 100, 2000)
	env.backfill(t)
	env.ledger.SetTime(2000)

	fake := &fakeLedger{Bank: env.ledger.Bank, failuresLeft: 10}
	svc := env.newService(fake, defaultOverrides())

	_, err := svc.processBatch(context.Background(), query.EmptyCursor)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.submissions)
	assert.EqualValues(t, 0, env.receiverBalance(t))
}

func TestProcessBatch_NotMaturedOnLedger(t *testing.T) {
	env := setup(t)

	state := env.ledger.Deposit(env.sender, env.receiver, env.mint, 100, 2000)
	env.backfill(t)

	// The service believes the escrow matured, but the ledger disagrees
	fake := &fakeLedger{Bank: env.ledger.Bank, now: 2000}
	svc := env.newService(fake, defaultOverrides())

	_, err := svc.processBatch(context.Background(), query.EmptyCursor)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.submissions)
	assert.EqualValues(t, 0, env.receiverBalance(t))

	// The reservation was released, so the next pass tries again
	_, err = svc.processBatch(context.Background(), query.EmptyCursor)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.submissions)

	env.ledger.SetTime(2000)
	_, err = svc.processBatch(context.Background(), query.EmptyCursor)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.submissions)
	assert.EqualValues(t, 100, env.receiverBalance(t))

	env.backfill(t)
	record, err := env.data.GetByAddress(context.Background(), base58.Encode(state))
	require.NoError(t, err)
	assert.Equal(t, escrow.StateReleased, record.State)
}

func TestStart(t *testing.T) {
	env := setup(t)

	env.ledger.Deposit(env.sender, env.receiver, env.mint, 100, 2000)
	env.backfill(t)
	env.ledger.SetTime(2000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := New(env.data, env.nonces, env.ledger.Bank, env.feePayer, withManualTestOverrides(defaultOverrides()))

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx, 10*time.Millisecond)
	}()

	require.NoError(t, testutil.WaitFor(2*time.Second, 10*time.Millisecond, func() bool {
		return env.receiverBalance(t) == 100
	}))

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("service didn't stop")
	}
}

func TestStart_Disabled(t *testing.T) {
	env := setup(t)

	env.ledger.Deposit(env.sender, env.receiver, env.mint, 100, 2000)
	env.backfill(t)
	env.ledger.SetTime(2000)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	overrides := defaultOverrides()
	overrides.disabled = true
	svc := New(env.data, env.nonces, env.ledger.Bank, env.feePayer, withManualTestOverrides(overrides))

	assert.Equal(t, context.DeadlineExceeded, svc.Start(ctx, 10*time.Millisecond))
	assert.EqualValues(t, 0, env.receiverBalance(t))
}
