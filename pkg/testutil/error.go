package testutil

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

// AssertProgramError verifies that the provided error wraps the expected
// escrow program error.
func AssertProgramError(t *testing.T, err error, expected token_escrow.ProgramError) {
	require.Error(t, err)
	actual, ok := token_escrow.GetProgramError(err)
	require.True(t, ok, "not an escrow program error: %v", err)
	assert.Equal(t, expected, actual)
}

// AssertInstructionError verifies that the provided error is a failed
// instruction at index with the builtin error key.
func AssertInstructionError(t *testing.T, err error, index int, key solana.InstructionErrorKey) {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr), "not a transaction error: %v", err)
	require.NotNil(t, txErr.InstructionError())
	assert.Equal(t, index, txErr.InstructionError().Index)
	assert.Equal(t, key, txErr.InstructionError().ErrorKey())
}

// AssertTransactionError verifies that the provided error is a transaction
// level error with the expected key.
func AssertTransactionError(t *testing.T, err error, key solana.TransactionErrorKey) {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr), "not a transaction error: %v", err)
	assert.Equal(t, key, txErr.ErrorKey())
}
