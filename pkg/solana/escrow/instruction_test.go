package token_escrow

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

func TestDecodeInstruction_Deposit(t *testing.T) {
	data := []byte{0, 0xe8, 0x03, 0, 0, 0, 0, 0, 0, 0x10, 0x0e, 0, 0, 0, 0, 0, 0}

	decoded, err := DecodeInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeDeposit, decoded.Type)
	require.NotNil(t, decoded.Deposit)
	assert.Nil(t, decoded.Unlock)
	assert.EqualValues(t, 1000, decoded.Deposit.Amount)
	assert.EqualValues(t, 3600, decoded.Deposit.EndTime)

	// Trailing bytes are ignored
	decoded, err = DecodeInstruction(append(data, 1, 2, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 1000, decoded.Deposit.Amount)
}

func TestDecodeInstruction_Unlock(t *testing.T) {
	data := make([]byte, UnlockInstructionSize)
	data[0] = 1
	binary.LittleEndian.PutUint64(data[1:], 0xdeadbeef)

	decoded, err := DecodeInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeUnlock, decoded.Type)
	require.NotNil(t, decoded.Unlock)
	assert.EqualValues(t, 0xdeadbeef, decoded.Unlock.Nonce)
}

func TestDecodeInstruction_Invalid(t *testing.T) {
	full := make([]byte, DepositInstructionSize)

	for _, data := range [][]byte{
		nil,
		{},
		{2},
		{0xff, 1, 2, 3, 4, 5, 6, 7, 8},
		full[:DepositInstructionSize-8], // end_time missing
		full[:DepositInstructionSize-1],
		{0, 1, 2, 3},
		{1},
		{1, 0, 0, 0, 0, 0, 0, 0},
	} {
		_, err := DecodeInstruction(data)
		assert.Equal(t, ErrInvalidInstruction, err, "data: %v", data)
		assert.Equal(t, ErrorKindMalformedInput, GetErrorKind(err))
	}
}

func TestDepositInstruction_RoundTrip(t *testing.T) {
	keys := generateKeys(t, 4)
	sender, escrowState, receiver, mint := keys[0], keys[1], keys[2], keys[3]

	accounts, err := GetDepositInstructionAccounts(sender, escrowState, receiver, mint)
	require.NoError(t, err)

	expectedVaultAuthority, _, err := GetVaultAuthorityAddress(&GetVaultAuthorityAddressArgs{Receiver: receiver})
	require.NoError(t, err)
	expectedSenderToken, err := token.GetAssociatedAccount(sender, mint)
	require.NoError(t, err)
	assert.Equal(t, expectedVaultAuthority, accounts.VaultAuthority)
	assert.Equal(t, expectedSenderToken, accounts.SenderTokenAccount)

	ix := NewDepositInstruction(accounts, &DepositInstructionArgs{Amount: 1000, EndTime: 1_700_000_000})
	assert.Equal(t, PROGRAM_ID, ix.Program)
	assert.Len(t, ix.Data, DepositInstructionSize)
	assert.EqualValues(t, InstructionTypeDeposit, ix.Data[0])
	require.Len(t, ix.Accounts, DepositInstructionAccountsCount)

	assert.True(t, ix.Accounts[0].IsSigner)
	assert.True(t, ix.Accounts[0].IsWritable)
	assert.True(t, ix.Accounts[4].IsSigner)
	assert.True(t, ix.Accounts[4].IsWritable)
	assert.False(t, ix.Accounts[1].IsWritable)

	args, decompiled, err := DecompileDepositInstruction(ix)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, args.Amount)
	assert.EqualValues(t, 1_700_000_000, args.EndTime)
	assert.Equal(t, accounts, decompiled)

	// Through a compiled transaction
	tx := solana.NewTransaction(sender, ix)
	compiled, err := tx.Message.DecompileInstruction(0)
	require.NoError(t, err)
	_, decompiled, err = DecompileDepositInstruction(compiled)
	require.NoError(t, err)
	assert.Equal(t, accounts, decompiled)

	_, err = UnlockInstructionFromBinary(ix.Data)
	assert.Equal(t, ErrInvalidInstruction, err)

	ix.Accounts = ix.Accounts[:5]
	_, _, err = DecompileDepositInstruction(ix)
	assert.Equal(t, ErrNotEnoughAccountKeys, err)

	ix.Program = keys[0]
	_, _, err = DecompileDepositInstruction(ix)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}

func TestUnlockInstruction_RoundTrip(t *testing.T) {
	keys := generateKeys(t, 4)
	escrowState, sender, receiver, mint := keys[0], keys[1], keys[2], keys[3]

	accounts, err := GetUnlockInstructionAccounts(escrowState, sender, receiver, mint)
	require.NoError(t, err)

	expectedReceiverToken, err := token.GetAssociatedAccount(receiver, mint)
	require.NoError(t, err)
	assert.Equal(t, expectedReceiverToken, accounts.ReceiverTokenAccount)

	ix := NewUnlockInstruction(accounts, &UnlockInstructionArgs{Nonce: 42})
	assert.Len(t, ix.Data, UnlockInstructionSize)
	require.Len(t, ix.Accounts, UnlockInstructionAccountsCount)
	for _, account := range ix.Accounts {
		assert.False(t, account.IsSigner)
	}
	assert.True(t, ix.Accounts[2].IsWritable)

	args, decompiled, err := DecompileUnlockInstruction(ix)
	require.NoError(t, err)
	assert.EqualValues(t, 42, args.Nonce)
	assert.Equal(t, accounts, decompiled)

	_, err = DepositInstructionFromBinary(ix.Data)
	assert.Equal(t, ErrInvalidInstruction, err)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}
	return keys
}
