package token_escrow

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/solana"
)

// ErrorKind groups program errors by the class of caller mistake.
type ErrorKind uint8

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindMalformedInput
	ErrorKindAuthorizationFailure
	ErrorKindTimingViolation
	ErrorKindStateCorruption
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindMalformedInput:
		return "malformed_input"
	case ErrorKindAuthorizationFailure:
		return "authorization_failure"
	case ErrorKindTimingViolation:
		return "timing_violation"
	case ErrorKindStateCorruption:
		return "state_corruption"
	}
	return "unknown"
}

type ProgramError uint32

const (
	// Instruction data has an unknown tag or is truncated
	ErrInvalidInstruction ProgramError = iota + 0x1770

	// Deposit amount must be non-zero
	ErrInvalidAmount

	// Fewer accounts than the instruction requires
	ErrNotEnoughAccountKeys

	// A required account did not sign the transaction
	ErrMissingRequiredSignature

	// Vault authority or a token account does not match its derived address
	ErrInvalidVaultAddress

	// Sender, vault authority or mint does not match the escrow record
	ErrEscrowMismatch

	// A program account is not the canonical program
	ErrIncorrectProgramID

	// The escrow state account is not owned by this program
	ErrIllegalOwner

	// Deposit end time is not in the future
	ErrLockAlreadyMatured

	// Unlock attempted before the end time
	ErrLockNotMatured

	// The escrow state account could not be decoded
	ErrInvalidEscrowState

	// Deposit end time overflows the ledger clock
	ErrInvalidEndTime
)

var programErrorNames = map[ProgramError]string{
	ErrInvalidInstruction:       "invalid instruction",
	ErrInvalidAmount:            "invalid amount",
	ErrNotEnoughAccountKeys:     "not enough account keys",
	ErrMissingRequiredSignature: "missing required signature",
	ErrInvalidVaultAddress:      "invalid vault address",
	ErrEscrowMismatch:           "escrow mismatch",
	ErrIncorrectProgramID:       "incorrect program id",
	ErrIllegalOwner:             "illegal owner",
	ErrLockAlreadyMatured:       "lock already matured",
	ErrLockNotMatured:           "lock not matured",
	ErrInvalidEscrowState:       "invalid escrow state",
	ErrInvalidEndTime:           "invalid end time",
}

func (e ProgramError) Error() string {
	name, ok := programErrorNames[e]
	if !ok {
		return fmt.Sprintf("escrow program error: 0x%x", uint32(e))
	}
	return name
}

func (e ProgramError) CustomErrorCode() solana.CustomError {
	return solana.CustomError(e)
}

func (e ProgramError) Kind() ErrorKind {
	switch e {
	case ErrInvalidInstruction, ErrInvalidAmount, ErrNotEnoughAccountKeys, ErrInvalidEndTime:
		return ErrorKindMalformedInput
	case ErrMissingRequiredSignature, ErrInvalidVaultAddress, ErrEscrowMismatch, ErrIncorrectProgramID, ErrIllegalOwner:
		return ErrorKindAuthorizationFailure
	case ErrLockAlreadyMatured, ErrLockNotMatured:
		return ErrorKindTimingViolation
	case ErrInvalidEscrowState:
		return ErrorKindStateCorruption
	}
	return ErrorKindUnknown
}

// GetProgramError extracts an escrow program error from err, which may be a
// wrapped transaction or instruction error.
func GetProgramError(err error) (ProgramError, bool) {
	var programErr ProgramError
	if errors.As(err, &programErr) {
		return programErr, true
	}

	// Errors reported over the wire only carry the custom code
	var ixErr solana.InstructionError
	if errors.As(err, &ixErr) {
		if custom := ixErr.CustomError(); custom != nil {
			if _, ok := programErrorNames[ProgramError(*custom)]; ok {
				return ProgramError(*custom), true
			}
		}
	}

	return 0, false
}

// GetErrorKind returns the kind of the escrow program error wrapped by err.
func GetErrorKind(err error) ErrorKind {
	programErr, ok := GetProgramError(err)
	if !ok {
		return ErrorKindUnknown
	}
	return programErr.Kind()
}
