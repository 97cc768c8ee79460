package escrow

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
	"github.com/code-payments/token-escrow/pkg/testutil"
)

func newProgramAccount(t *testing.T, amount uint64) *token_escrow.EscrowAccount {
	keys := testutil.GenerateSolanaKeys(t, 3)
	sender, receiver, mint := keys[0], keys[1], keys[2]

	vaultAuthority, _, err := token_escrow.GetVaultAuthorityAddress(&token_escrow.GetVaultAuthorityAddressArgs{
		Receiver: receiver,
	})
	require.NoError(t, err)

	return &token_escrow.EscrowAccount{
		Amount:         amount,
		StartTime:      1000,
		EndTime:        4600,
		VaultAuthority: vaultAuthority,
		Sender:         sender,
		Mint:           mint,
		Receiver:       receiver,
	}
}

func TestNewFromProgramAccount(t *testing.T) {
	account := newProgramAccount(t, 500)

	record, err := NewFromProgramAccount("state", account, 7)
	require.NoError(t, err)
	require.NoError(t, record.Validate())

	vaultAuthority, bump, err := token_escrow.GetVaultAuthorityAddress(&token_escrow.GetVaultAuthorityAddressArgs{
		Receiver: account.Receiver,
	})
	require.NoError(t, err)
	vaultToken, err := token_escrow.GetVaultTokenAddress(&token_escrow.GetVaultTokenAddressArgs{
		VaultAuthority: vaultAuthority,
		Mint:           account.Mint,
	})
	require.NoError(t, err)

	assert.Equal(t, "state", record.Address)
	assert.Equal(t, base58.Encode(vaultAuthority), record.VaultAuthority)
	assert.Equal(t, bump, record.VaultAuthorityBump)
	assert.Equal(t, base58.Encode(vaultToken), record.VaultTokenAccount)
	assert.Equal(t, base58.Encode(account.Sender), record.Sender)
	assert.Equal(t, base58.Encode(account.Receiver), record.Receiver)
	assert.Equal(t, base58.Encode(account.Mint), record.Mint)
	assert.EqualValues(t, 500, record.Amount)
	assert.EqualValues(t, 500, record.DepositedAmount)
	assert.EqualValues(t, 1000, record.StartTime)
	assert.EqualValues(t, 4600, record.EndTime)
	assert.Equal(t, StateLocked, record.State)
	assert.EqualValues(t, 7, record.Slot)
}

func TestUpdateFromProgramAccount(t *testing.T) {
	account := newProgramAccount(t, 500)

	record, err := NewFromProgramAccount("state", account, 7)
	require.NoError(t, err)

	account.Amount = 0
	assert.Equal(t, ErrStaleEscrowState, record.UpdateFromProgramAccount(account, 7))
	assert.Equal(t, StateLocked, record.State)

	require.NoError(t, record.UpdateFromProgramAccount(account, 8))
	assert.Equal(t, StateReleased, record.State)
	assert.EqualValues(t, 0, record.Amount)
	assert.EqualValues(t, 500, record.DepositedAmount)
	assert.EqualValues(t, 8, record.Slot)
	require.NoError(t, record.Validate())
}

func TestUpdateFromProgramAccount_UnderivedVaultAuthority(t *testing.T) {
	account := newProgramAccount(t, 500)
	account.VaultAuthority = testutil.GenerateSolanaKeys(t, 1)[0]

	_, err := NewFromProgramAccount("state", account, 1)
	assert.True(t, errors.Is(err, ErrInvalidEscrow))
}

func TestStateAt(t *testing.T) {
	record, err := NewFromProgramAccount("state", newProgramAccount(t, 500), 1)
	require.NoError(t, err)

	assert.Equal(t, StateLocked, record.StateAt(1000))
	assert.Equal(t, StateLocked, record.StateAt(4599))
	assert.False(t, record.IsUnlockable(4599))

	assert.Equal(t, StateMatured, record.StateAt(4600))
	assert.Equal(t, StateMatured, record.StateAt(10_000))
	assert.True(t, record.IsUnlockable(4600))

	record.Amount = 0
	record.State = StateReleased
	assert.Equal(t, StateReleased, record.StateAt(1000))
	assert.Equal(t, StateReleased, record.StateAt(10_000))
	assert.False(t, record.IsUnlockable(10_000))

	assert.Equal(t, "released", StateReleased.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestClone(t *testing.T) {
	record, err := NewFromProgramAccount("state", newProgramAccount(t, 500), 1)
	require.NoError(t, err)
	record.Id = 3

	cloned := record.Clone()
	assert.Equal(t, record, cloned)

	cloned.Amount = 1
	assert.EqualValues(t, 500, record.Amount)

	var copied Record
	record.CopyTo(&copied)
	assert.Equal(t, *record, copied)
}

