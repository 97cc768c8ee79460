package ledger_test

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/ledger/account"
	"github.com/code-payments/token-escrow/pkg/ledger/native"
	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
	"github.com/code-payments/token-escrow/pkg/solana/token"
	"github.com/code-payments/token-escrow/pkg/testutil"
)

// relayProgram forwards its instruction data to the system program as a
// cross program invocation, optionally escalating privileges or recursing.
type relayProgram struct {
	id ed25519.PublicKey
}

const (
	relayTransfer byte = iota
	relayEscalateSigner
	relayEscalateWritable
	relayRecurse
)

func newRelayProgram(t *testing.T) *relayProgram {
	return &relayProgram{id: testutil.GenerateSolanaKeys(t, 1)[0]}
}

func (p *relayProgram) ID() ed25519.PublicKey {
	return p.id
}

func (p *relayProgram) Process(ic *ledger.InvokeContext, ix solana.Instruction) error {
	from := ix.Accounts[0].PublicKey
	to := ix.Accounts[1].PublicKey

	switch ix.Data[0] {
	case relayTransfer:
		return ic.Invoke(system.Transfer(from, to, 1))
	case relayEscalateSigner:
		// to never signs the outer transaction
		return ic.Invoke(system.Transfer(to, from, 1))
	case relayEscalateWritable:
		transfer := system.Transfer(from, to, 1)
		transfer.Accounts[1].IsWritable = true
		return ic.Invoke(transfer)
	case relayRecurse:
		return ic.Invoke(solana.NewInstruction(p.id, ix.Data, ix.Accounts...))
	}
	return solana.InstructionErrorInvalidInstructionData
}

func (p *relayProgram) instruction(command byte, from, to ed25519.PublicKey, toWritable bool) solana.Instruction {
	toMeta := solana.NewReadonlyAccountMeta(to, false)
	if toWritable {
		toMeta = solana.NewAccountMeta(to, false)
	}

	return solana.NewInstruction(
		p.id,
		[]byte{command},
		solana.NewAccountMeta(from, true),
		toMeta,
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(p.id, false),
	)
}

type recordingObserver struct {
	sync.Mutex
	slots   []uint64
	records map[string]*account.Record
}

func (o *recordingObserver) OnAccountsCommitted(_ context.Context, slot uint64, records []*account.Record) {
	o.Lock()
	defer o.Unlock()

	o.slots = append(o.slots, slot)
	for _, record := range records {
		o.records[record.Address] = record
	}
}

func TestBank_Transfer(t *testing.T) {
	l := testutil.NewTestLedger(t, 1000)

	sender := l.NewFundedKeypair()
	senderPublicKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	startSlot := l.Bank.Slot()

	result := l.MustSubmit([]ed25519.PrivateKey{sender}, system.Transfer(senderPublicKey, receiver, 1_000))
	assert.EqualValues(t, ledger.DefaultLamportsPerSignature, result.Fee)
	assert.Equal(t, startSlot+1, result.Slot)
	assert.Equal(t, result.Slot, l.Bank.Slot())
	assert.NotEmpty(t, result.Logs)

	assert.EqualValues(t, testutil.DefaultAirdrop-1_000-ledger.DefaultLamportsPerSignature, l.Lamports(senderPublicKey))
	assert.EqualValues(t, 1_000, l.Lamports(receiver))
}

func TestBank_FailedInstructionOnlyChargesFee(t *testing.T) {
	l := testutil.NewTestLedger(t, 1000)

	sender := l.NewFundedKeypair()
	senderPublicKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	result, err := l.Submit(
		[]ed25519.PrivateKey{sender},
		system.Transfer(senderPublicKey, receiver, 1_000),
		system.Transfer(senderPublicKey, receiver, testutil.DefaultAirdrop),
	)
	testutil.AssertInstructionError(t, err, 1, solana.InstructionErrorInsufficientFunds)
	require.NotNil(t, result)
	assert.False(t, result.Succeeded())
	assert.Equal(t, err, error(result.Err))

	// The first transfer is rolled back along with the second
	assert.EqualValues(t, testutil.DefaultAirdrop-ledger.DefaultLamportsPerSignature, l.Lamports(senderPublicKey))
	assert.EqualValues(t, 0, l.Lamports(receiver))
}

func TestBank_RejectedTransactions(t *testing.T) {
	l := testutil.NewTestLedger(t, 1000)

	sender := l.NewFundedKeypair()
	senderPublicKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	// Duplicate signature
	txn := l.NewTransaction([]ed25519.PrivateKey{sender}, system.Transfer(senderPublicKey, receiver, 1))
	_, err := l.Bank.Execute(context.Background(), txn)
	require.NoError(t, err)

	result, err := l.Bank.Execute(context.Background(), txn)
	testutil.AssertTransactionError(t, err, solana.TransactionErrorDuplicateSignature)
	assert.Nil(t, result)

	// Tampered message
	txn = l.NewTransaction([]ed25519.PrivateKey{sender}, system.Transfer(senderPublicKey, receiver, 1))
	txn.Message.Instructions[0].Data[len(txn.Message.Instructions[0].Data)-1] ^= 0xff
	_, err = l.Bank.Execute(context.Background(), txn)
	testutil.AssertTransactionError(t, err, solana.TransactionErrorSignatureFailure)

	// Unsigned
	txn = solana.NewTransaction(senderPublicKey, system.Transfer(senderPublicKey, receiver, 1))
	_, err = l.Bank.Execute(context.Background(), txn)
	testutil.AssertTransactionError(t, err, solana.TransactionErrorMissingSignatureForFee)

	// Payer can't cover the fee
	broke := testutil.GenerateSolanaKeypair(t)
	_, err = l.Submit([]ed25519.PrivateKey{broke}, system.Transfer(broke.Public().(ed25519.PublicKey), receiver, 0))
	testutil.AssertTransactionError(t, err, solana.TransactionErrorInsufficientFundsForFee)

	// Only the first transaction was processed
	assert.EqualValues(t, testutil.DefaultAirdrop-1-ledger.DefaultLamportsPerSignature, l.Lamports(senderPublicKey))
	assert.EqualValues(t, 1, l.Lamports(receiver))
}

func TestBank_BlockhashWindow(t *testing.T) {
	l := testutil.NewTestLedger(t, 1000, ledger.WithMaxBlockhashAge(2))

	sender := l.NewFundedKeypair()
	senderPublicKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	// Signed against a blockhash the bank never issued
	txn := solana.NewTransaction(senderPublicKey, system.Transfer(senderPublicKey, receiver, 1))
	txn.SetBlockhash(solana.Blockhash{1, 2, 3})
	require.NoError(t, txn.Sign(sender))
	_, err := l.Bank.Execute(context.Background(), txn)
	testutil.AssertTransactionError(t, err, solana.TransactionErrorBlockhashNotFound)

	// Still valid one slot later
	txn = l.NewTransaction([]ed25519.PrivateKey{sender}, system.Transfer(senderPublicKey, receiver, 1))
	l.Airdrop(testutil.GenerateSolanaKeys(t, 1)[0], 1)
	_, err = l.Bank.Execute(context.Background(), txn)
	require.NoError(t, err)

	// Expired once two newer blockhashes were issued
	txn = l.NewTransaction([]ed25519.PrivateKey{sender}, system.Transfer(senderPublicKey, receiver, 1))
	l.Airdrop(testutil.GenerateSolanaKeys(t, 1)[0], 1)
	l.Airdrop(testutil.GenerateSolanaKeys(t, 1)[0], 1)
	_, err = l.Bank.Execute(context.Background(), txn)
	testutil.AssertTransactionError(t, err, solana.TransactionErrorBlockhashNotFound)

	assert.EqualValues(t, 1, l.Lamports(receiver))

	_, err = ledger.NewBank(context.Background(), l.Store, ledger.WithMaxBlockhashAge(0))
	assert.Error(t, err)
}

func TestBank_Restart(t *testing.T) {
	l := testutil.NewTestLedger(t, 1000)

	sender := l.NewFundedKeypair()
	senderPublicKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := l.NewTransaction([]ed25519.PrivateKey{sender}, system.Transfer(senderPublicKey, receiver, 10))
	result, err := l.Bank.Execute(context.Background(), txn)
	require.NoError(t, err)

	restarted, err := ledger.NewBank(context.Background(), l.Store, ledger.WithPrograms(native.Programs()...))
	require.NoError(t, err)

	// The slot resumes from what was persisted
	assert.Equal(t, l.Bank.Slot(), restarted.Slot())
	assert.NotEqual(t, l.Bank.RecentBlockhash(), restarted.RecentBlockhash())

	// Transactions processed before the restart can't be replayed
	_, err = restarted.Execute(context.Background(), txn)
	testutil.AssertTransactionError(t, err, solana.TransactionErrorBlockhashNotFound)
	assert.EqualValues(t, 10, l.Lamports(receiver))

	txn = solana.NewTransaction(senderPublicKey, system.Transfer(senderPublicKey, receiver, 10))
	txn.SetBlockhash(restarted.RecentBlockhash())
	require.NoError(t, txn.Sign(sender))

	replayed, err := restarted.Execute(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, result.Slot+1, replayed.Slot)
	assert.EqualValues(t, 20, l.Lamports(receiver))

	// A starting slot only ever moves the bank forward
	ahead, err := ledger.NewBank(context.Background(), l.Store, ledger.WithStartingSlot(replayed.Slot+100))
	require.NoError(t, err)
	assert.Equal(t, replayed.Slot+100, ahead.Slot())

	behind, err := ledger.NewBank(context.Background(), l.Store, ledger.WithStartingSlot(1))
	require.NoError(t, err)
	assert.Equal(t, replayed.Slot, behind.Slot())
}

func TestBank_UnsupportedProgram(t *testing.T) {
	l := testutil.NewTestLedger(t, 1000)

	payer := l.NewFundedKeypair()
	unknown := testutil.GenerateSolanaKeys(t, 1)[0]

	_, err := l.Submit([]ed25519.PrivateKey{payer}, solana.NewInstruction(unknown, []byte{1}))
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorUnsupportedProgramID)
}

func TestBank_CrossProgramInvocation(t *testing.T) {
	relay := newRelayProgram(t)
	l := testutil.NewTestLedger(t, 1000, ledger.WithPrograms(relay))

	sender := l.NewFundedKeypair()
	senderPublicKey := sender.Public().(ed25519.PublicKey)

	victim := l.NewFundedKeypair()
	victimPublicKey := victim.Public().(ed25519.PublicKey)

	result := l.MustSubmit(
		[]ed25519.PrivateKey{sender},
		relay.instruction(relayTransfer, senderPublicKey, victimPublicKey, true),
	)
	assert.Contains(t, result.Logs, "Program "+base58.Encode(relay.id)+" invoke [1]")
	assert.Contains(t, result.Logs, "Program 11111111111111111111111111111111 invoke [2]")
	assert.EqualValues(t, testutil.DefaultAirdrop+1, l.Lamports(victimPublicKey))

	_, err := l.Submit(
		[]ed25519.PrivateKey{sender},
		relay.instruction(relayEscalateSigner, senderPublicKey, victimPublicKey, true),
	)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorPrivilegeEscalation)

	_, err = l.Submit(
		[]ed25519.PrivateKey{sender},
		relay.instruction(relayEscalateWritable, senderPublicKey, victimPublicKey, false),
	)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorPrivilegeEscalation)

	_, err = l.Submit(
		[]ed25519.PrivateKey{sender},
		relay.instruction(relayRecurse, senderPublicKey, victimPublicKey, true),
	)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorCallDepth)

	assert.EqualValues(t, testutil.DefaultAirdrop+1, l.Lamports(victimPublicKey))
}

func TestBank_Observers(t *testing.T) {
	observer := &recordingObserver{records: make(map[string]*account.Record)}
	l := testutil.NewTestLedger(t, 1000, ledger.WithObservers(observer))

	sender := l.NewFundedKeypair()
	senderPublicKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	result := l.MustSubmit([]ed25519.PrivateKey{sender}, system.Transfer(senderPublicKey, receiver, 42))

	observer.Lock()
	defer observer.Unlock()

	require.Len(t, observer.slots, 2)
	assert.Equal(t, result.Slot, observer.slots[1])

	record, ok := observer.records[base58.Encode(receiver)]
	require.True(t, ok)
	assert.EqualValues(t, 42, record.Lamports)
	assert.Equal(t, result.Slot, record.Slot)
	assert.Equal(t, base58.Encode(system.ProgramKey[:]), record.Owner)

	// Observers get their own copy
	record.Lamports = 0
	assert.EqualValues(t, 42, l.Lamports(receiver))
}

func TestBank_MonotonicClock(t *testing.T) {
	l := testutil.NewTestLedger(t, 5000)
	assert.EqualValues(t, 5000, l.Bank.UnixTimestamp())

	l.Clock.Advance(time.Minute)
	assert.EqualValues(t, 5060, l.Bank.UnixTimestamp())

	l.SetTime(100)
	assert.EqualValues(t, 5060, l.Bank.UnixTimestamp())
}

func TestBank_GetProgramAccounts(t *testing.T) {
	l := testutil.NewTestLedger(t, 1000)

	authority := l.NewFundedKeypair()
	mint := l.CreateMint(authority, 0)

	var expected []string
	for i := 0; i < 3; i++ {
		owner := testutil.GenerateSolanaKeys(t, 1)[0]
		expected = append(expected, base58.Encode(l.CreateAssociatedTokenAccount(authority, owner, mint)))
	}
	expected = append(expected, base58.Encode(mint))

	program, err := l.Bank.GetProgramAccounts(context.Background(), token.ProgramKey)
	require.NoError(t, err)

	var actual []string
	for _, record := range program {
		actual = append(actual, record.Address)
	}
	assert.ElementsMatch(t, expected, actual)

	_, err = l.Bank.GetAccountInfo(context.Background(), testutil.GenerateSolanaKeys(t, 1)[0])
	assert.Equal(t, solana.ErrNoAccountInfo, err)
}
