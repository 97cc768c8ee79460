package testutil

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/escrow"
	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/ledger/account"
	memory_account_store "github.com/code-payments/token-escrow/pkg/ledger/account/memory"
	"github.com/code-payments/token-escrow/pkg/ledger/native"
	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
	"github.com/code-payments/token-escrow/pkg/solana/system"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

// DefaultAirdrop is the balance given to keypairs created by NewFundedKeypair.
const DefaultAirdrop = 10_000_000_000

// TestLedger is an in memory ledger running the builtin programs and the escrow
// program, with a manually controlled clock.
type TestLedger struct {
	t *testing.T

	Bank  *ledger.Bank
	Store account.Store
	Clock *ledger.ManualClock
}

// NewTestLedger returns a ledger whose clock starts at the unix timestamp now.
func NewTestLedger(t *testing.T, now int64, opts ...ledger.Option) *TestLedger {
	store := memory_account_store.New()
	clock := ledger.NewManualClock(time.Unix(now, 0))

	programs := append(native.Programs(), escrow.NewProcessor())
	opts = append([]ledger.Option{
		ledger.WithPrograms(programs...),
		ledger.WithClock(clock),
	}, opts...)

	bank, err := ledger.NewBank(context.Background(), store, opts...)
	require.NoError(t, err)

	return &TestLedger{
		t:     t,
		Bank:  bank,
		Store: store,
		Clock: clock,
	}
}

// SetTime moves the ledger clock to the unix timestamp now.
func (l *TestLedger) SetTime(now int64) {
	l.Clock.Set(time.Unix(now, 0))
}

func (l *TestLedger) Airdrop(to ed25519.PublicKey, lamports uint64) {
	_, err := l.Bank.Airdrop(context.Background(), to, lamports)
	require.NoError(l.t, err)
}

// NewFundedKeypair returns a keypair holding DefaultAirdrop lamports.
func (l *TestLedger) NewFundedKeypair() ed25519.PrivateKey {
	key := GenerateSolanaKeypair(l.t)
	l.Airdrop(key.Public().(ed25519.PublicKey), DefaultAirdrop)
	return key
}

// NewTransaction builds a transaction paid for by the first signer and signed
// by all of them against the latest blockhash. Every commit issues a new
// blockhash, so identical instructions can be resubmitted.
func (l *TestLedger) NewTransaction(signers []ed25519.PrivateKey, instructions ...solana.Instruction) solana.Transaction {
	require.NotEmpty(l.t, signers)

	txn := solana.NewTransaction(signers[0].Public().(ed25519.PublicKey), instructions...)
	txn.SetBlockhash(l.Bank.RecentBlockhash())

	require.NoError(l.t, txn.Sign(signers...))
	return txn
}

// Submit executes a transaction built by NewTransaction.
func (l *TestLedger) Submit(signers []ed25519.PrivateKey, instructions ...solana.Instruction) (*ledger.Result, error) {
	return l.Bank.Execute(context.Background(), l.NewTransaction(signers, instructions...))
}

// MustSubmit is like Submit, but fails the test if the transaction fails.
func (l *TestLedger) MustSubmit(signers []ed25519.PrivateKey, instructions ...solana.Instruction) *ledger.Result {
	result, err := l.Submit(signers, instructions...)
	require.NoError(l.t, err)
	require.True(l.t, result.Succeeded())
	return result
}

// CreateMint creates an initialized mint controlled by authority.
func (l *TestLedger) CreateMint(authority ed25519.PrivateKey, decimals byte) ed25519.PublicKey {
	mint := GenerateSolanaKeypair(l.t)
	mintAddress := mint.Public().(ed25519.PublicKey)

	l.MustSubmit(
		[]ed25519.PrivateKey{authority, mint},
		system.CreateAccount(
			authority.Public().(ed25519.PublicKey),
			mintAddress,
			token.ProgramKey,
			system.MinimumBalance(token.MintSize),
			token.MintSize,
		),
		token.InitializeMint(mintAddress, authority.Public().(ed25519.PublicKey), decimals),
	)

	return mintAddress
}

// CreateAssociatedTokenAccount creates the associated token account of owner
// for mint, paid for by payer.
func (l *TestLedger) CreateAssociatedTokenAccount(payer ed25519.PrivateKey, owner, mint ed25519.PublicKey) ed25519.PublicKey {
	ix, address, err := token.CreateAssociatedTokenAccount(payer.Public().(ed25519.PublicKey), owner, mint)
	require.NoError(l.t, err)

	l.MustSubmit([]ed25519.PrivateKey{payer}, ix)
	return address
}

func (l *TestLedger) MintTo(authority ed25519.PrivateKey, mint, destination ed25519.PublicKey, amount uint64) {
	l.MustSubmit(
		[]ed25519.PrivateKey{authority},
		token.MintTo(mint, destination, authority.Public().(ed25519.PublicKey), amount),
	)
}

// TokenBalance returns the amount held by an initialized token account.
func (l *TestLedger) TokenBalance(address, mint ed25519.PublicKey) uint64 {
	holding, err := token.NewClient(l.Bank, mint).GetAccount(context.Background(), address)
	require.NoError(l.t, err)
	return holding.Amount
}

// Lamports returns the lamport balance of an account, which is zero for
// accounts that don't exist.
func (l *TestLedger) Lamports(address ed25519.PublicKey) uint64 {
	info, err := l.Bank.GetAccountInfo(context.Background(), address)
	if err == solana.ErrNoAccountInfo {
		return 0
	}
	require.NoError(l.t, err)
	return info.Lamports
}

// AccountInfo returns the committed state of an existing account.
func (l *TestLedger) AccountInfo(address ed25519.PublicKey) solana.AccountInfo {
	info, err := l.Bank.GetAccountInfo(context.Background(), address)
	require.NoError(l.t, err)
	return info
}

// Deposit locks amount of mint from the associated token account of sender
// until endTime, and returns the address of the new escrow state account.
func (l *TestLedger) Deposit(sender ed25519.PrivateKey, receiver, mint ed25519.PublicKey, amount, endTime uint64) ed25519.PublicKey {
	state := GenerateSolanaKeypair(l.t)
	statePublicKey := state.Public().(ed25519.PublicKey)

	accounts, err := token_escrow.GetDepositInstructionAccounts(sender.Public().(ed25519.PublicKey), statePublicKey, receiver, mint)
	require.NoError(l.t, err)

	l.MustSubmit(
		[]ed25519.PrivateKey{sender, state},
		token_escrow.NewDepositInstruction(accounts, &token_escrow.DepositInstructionArgs{
			Amount:  amount,
			EndTime: endTime,
		}),
	)

	return statePublicKey
}
