package token

import (
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
)

func TestGetAssociatedAccount(t *testing.T) {
	// Derived by spl-associated-token-account.
	wallet, err := base58.Decode("4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM")
	require.NoError(t, err)
	mint, err := base58.Decode("8opHzTAnfzRpPEx21XtnrVTX28YQuCpAjcn1PczScKh")
	require.NoError(t, err)
	addr, err := base58.Decode("H7MQwEzt97tUJryocn3qaEoy2ymWstwyEk1i9Yv3EmuZ")
	require.NoError(t, err)

	actual, err := GetAssociatedAccount(wallet, mint)
	require.NoError(t, err)
	assert.EqualValues(t, addr, actual)
}

func TestCreateAssociatedAccount(t *testing.T) {
	for _, idempotent := range []bool{false, true} {
		keys := generateKeys(t, 3)

		expectedAddr, err := GetAssociatedAccount(keys[1], keys[2])
		require.NoError(t, err)

		create := CreateAssociatedTokenAccount
		expectedCommand := commandCreate
		if idempotent {
			create = CreateAssociatedTokenAccountIdempotent
			expectedCommand = commandCreateIdempotent
		}

		instruction, addr, err := create(keys[0], keys[1], keys[2])
		require.NoError(t, err)
		assert.Equal(t, expectedAddr, addr)

		assert.Equal(t, []byte{expectedCommand}, instruction.Data)
		assert.Equal(t, []solana.AccountMeta{
			solana.NewAccountMeta(keys[0], true),
			solana.NewAccountMeta(addr, false),
			solana.NewReadonlyAccountMeta(keys[1], false),
			solana.NewReadonlyAccountMeta(keys[2], false),
			solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
			solana.NewReadonlyAccountMeta(ProgramKey, false),
			solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		}, instruction.Accounts)

		decompiled, err := DecodeCreateAssociatedAccount(compiled(t, keys[0], instruction))
		require.NoError(t, err)
		assert.Equal(t, keys[0], decompiled.Subsidizer)
		assert.Equal(t, addr, decompiled.Address)
		assert.Equal(t, keys[1], decompiled.Owner)
		assert.Equal(t, keys[2], decompiled.Mint)
		assert.Equal(t, idempotent, decompiled.Idempotent)
	}
}

func TestDecodeCreateAssociatedAccount_Invalid(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction, _, err := CreateAssociatedTokenAccount(keys[0], keys[1], keys[2])
	require.NoError(t, err)

	// Legacy empty data is a plain create
	instruction.Data = nil
	decoded, err := DecodeCreateAssociatedAccount(instruction)
	require.NoError(t, err)
	assert.False(t, decoded.Idempotent)

	instruction.Data = []byte{2}
	_, err = DecodeCreateAssociatedAccount(instruction)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Data = nil
	instruction.Accounts[6].PublicKey = keys[3]
	_, err = DecodeCreateAssociatedAccount(instruction)
	assert.EqualError(t, err, "rent sysvar key mismatch")

	instruction.Accounts = instruction.Accounts[:6]
	_, err = DecodeCreateAssociatedAccount(instruction)
	assert.Error(t, err)

	instruction.Program = keys[3]
	_, err = DecodeCreateAssociatedAccount(instruction)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}
