package solana

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testProgramError uint32

func (e testProgramError) Error() string                { return "test program error" }
func (e testProgramError) CustomErrorCode() CustomError { return CustomError(e) }

func TestTransactionError_InstructionError(t *testing.T) {
	txErr := TransactionErrorFromInstructionError(&InstructionError{
		Index: 2,
		Err:   errors.Wrap(testProgramError(0x1770), "deposit failed"),
	})

	assert.Equal(t, TransactionErrorInstructionError, txErr.ErrorKey())
	require.NotNil(t, txErr.InstructionError())
	assert.Equal(t, 2, txErr.InstructionError().Index)
	assert.Equal(t, InstructionErrorCustom, txErr.InstructionError().ErrorKey())
	require.NotNil(t, txErr.InstructionError().CustomError())
	assert.Equal(t, CustomError(0x1770), *txErr.InstructionError().CustomError())

	var programErr testProgramError
	assert.True(t, errors.As(txErr, &programErr))
	assert.Equal(t, testProgramError(0x1770), programErr)

	encoded, err := txErr.JSONString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"InstructionError":[2,{"Custom":6000}]}`, encoded)
}

func TestTransactionError_BuiltinInstructionError(t *testing.T) {
	txErr := TransactionErrorFromInstructionError(&InstructionError{
		Index: 0,
		Err:   errors.Wrap(InstructionErrorMissingRequiredSignature, "sender"),
	})

	assert.Equal(t, InstructionErrorMissingRequiredSignature, txErr.InstructionError().ErrorKey())
	assert.Nil(t, txErr.InstructionError().CustomError())
	assert.True(t, errors.Is(txErr, InstructionErrorMissingRequiredSignature))

	encoded, err := txErr.JSONString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"InstructionError":[0,"MissingRequiredSignature"]}`, encoded)
}

func TestTransactionError_TransactionLevel(t *testing.T) {
	cause := errors.New("seen before")
	txErr := NewTransactionError(TransactionErrorDuplicateSignature, cause)

	assert.Equal(t, TransactionErrorDuplicateSignature, txErr.ErrorKey())
	assert.Nil(t, txErr.InstructionError())
	assert.True(t, errors.Is(txErr, cause))
	assert.Contains(t, txErr.Error(), "DuplicateSignature")

	encoded, err := txErr.JSONString()
	require.NoError(t, err)
	assert.Equal(t, `"DuplicateSignature"`, encoded)
}

func TestInstructionError_GenericFallback(t *testing.T) {
	ixErr := InstructionError{Index: 1, Err: errors.New("boom")}
	assert.Equal(t, InstructionErrorGenericError, ixErr.ErrorKey())
	assert.Nil(t, ixErr.CustomError())
	assert.Contains(t, ixErr.Error(), "Instruction 1")
}
