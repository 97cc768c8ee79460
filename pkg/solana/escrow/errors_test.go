package token_escrow

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/code-payments/token-escrow/pkg/solana"
)

func TestProgramError_Kind(t *testing.T) {
	for _, tc := range []struct {
		err  ProgramError
		kind ErrorKind
	}{
		{ErrInvalidInstruction, ErrorKindMalformedInput},
		{ErrInvalidAmount, ErrorKindMalformedInput},
		{ErrMissingRequiredSignature, ErrorKindAuthorizationFailure},
		{ErrInvalidVaultAddress, ErrorKindAuthorizationFailure},
		{ErrEscrowMismatch, ErrorKindAuthorizationFailure},
		{ErrIllegalOwner, ErrorKindAuthorizationFailure},
		{ErrLockAlreadyMatured, ErrorKindTimingViolation},
		{ErrLockNotMatured, ErrorKindTimingViolation},
		{ErrInvalidEscrowState, ErrorKindStateCorruption},
	} {
		assert.Equal(t, tc.kind, tc.err.Kind(), tc.err.Error())
		assert.Equal(t, solana.CustomError(tc.err), tc.err.CustomErrorCode())
	}

	assert.EqualValues(t, 0x1770, ErrInvalidInstruction)
	assert.Equal(t, ErrorKindUnknown, ProgramError(1).Kind())
	assert.Equal(t, "timing_violation", ErrorKindTimingViolation.String())
}

func TestGetProgramError(t *testing.T) {
	wrapped := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: 0,
		Err:   errors.Wrap(ErrLockNotMatured, "unlock"),
	})

	programErr, ok := GetProgramError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrLockNotMatured, programErr)
	assert.Equal(t, ErrorKindTimingViolation, GetErrorKind(wrapped))

	// Only the custom code survives
	remote := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: 0,
		Err:   solana.CustomError(ErrEscrowMismatch),
	})
	programErr, ok = GetProgramError(remote)
	assert.True(t, ok)
	assert.Equal(t, ErrEscrowMismatch, programErr)

	_, ok = GetProgramError(errors.New("other"))
	assert.False(t, ok)
	assert.Equal(t, ErrorKindUnknown, GetErrorKind(solana.InstructionErrorMissingRequiredSignature))
}
