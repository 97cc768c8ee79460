package solana

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// TransactionErrorKey is the string key of a transaction level error.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse               TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound            TransactionErrorKey = "AccountNotFound"
	TransactionErrorBlockhashNotFound          TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorProgramAccountNotFound     TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorInsufficientFundsForFee    TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorDuplicateSignature         TransactionErrorKey = "DuplicateSignature"
	TransactionErrorInstructionError           TransactionErrorKey = "InstructionError"
	TransactionErrorMissingSignatureForFee     TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorSignatureFailure           TransactionErrorKey = "SignatureFailure"
	TransactionErrorInvalidProgramForExecution TransactionErrorKey = "InvalidProgramForExecution"
	TransactionErrorSanitizeFailure            TransactionErrorKey = "SanitizeFailure"
	TransactionErrorTooLarge                   TransactionErrorKey = "TooLarge"
)

// InstructionErrorKey is the string key of a builtin instruction error. Keys are
// errors themselves so native programs can return them directly.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorGenericError              InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorAccountDataTooSmall       InstructionErrorKey = "AccountDataTooSmall"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID        InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorUninitializedAccount      InstructionErrorKey = "UninitializedAccount"
	InstructionErrorReadonlyDataModified      InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorNotEnoughAccountKeys      InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
	InstructionErrorUnsupportedProgramID      InstructionErrorKey = "UnsupportedProgramId"
	InstructionErrorCallDepth                 InstructionErrorKey = "CallDepth"
	InstructionErrorMissingAccount            InstructionErrorKey = "MissingAccount"
	InstructionErrorPrivilegeEscalation       InstructionErrorKey = "PrivilegeEscalation"
	InstructionErrorInvalidSeeds              InstructionErrorKey = "InvalidSeeds"
	InstructionErrorIllegalOwner              InstructionErrorKey = "IllegalOwner"
)

func (k InstructionErrorKey) Error() string {
	return string(k)
}

// CustomError is the numerical error returned by a non-builtin program.
type CustomError uint32

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", uint32(c))
}

// CustomErrorCoder is implemented by program specific error types that map onto
// a CustomError code.
type CustomErrorCoder interface {
	error
	CustomErrorCode() CustomError
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	if i.Err == nil {
		return ""
	}

	if i.CustomError() != nil {
		return InstructionErrorCustom
	}

	var key InstructionErrorKey
	if errors.As(i.Err, &key) {
		return key
	}
	return InstructionErrorGenericError
}

// CustomError returns the custom program error code, if any.
func (i InstructionError) CustomError() *CustomError {
	var coder CustomErrorCoder
	if errors.As(i.Err, &coder) {
		code := coder.CustomErrorCode()
		return &code
	}

	var custom CustomError
	if errors.As(i.Err, &custom) {
		return &custom
	}

	return nil
}

func (i InstructionError) raw() interface{} {
	if custom := i.CustomError(); custom != nil {
		return []interface{}{i.Index, map[string]interface{}{string(InstructionErrorCustom): uint32(*custom)}}
	}
	return []interface{}{i.Index, string(i.ErrorKey())}
}

// TransactionError is the error returned when a transaction fails to execute.
type TransactionError struct {
	key              TransactionErrorKey
	instructionError *InstructionError
	cause            error
}

// NewTransactionError returns a transaction level error, optionally carrying the
// underlying cause for logging.
func NewTransactionError(key TransactionErrorKey, cause error) *TransactionError {
	return &TransactionError{
		key:   key,
		cause: cause,
	}
}

// TransactionErrorFromInstructionError wraps a failed instruction.
func TransactionErrorFromInstructionError(err *InstructionError) *TransactionError {
	return &TransactionError{
		key:              TransactionErrorInstructionError,
		instructionError: err,
	}
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}
	if t.cause != nil {
		return fmt.Sprintf("%s: %v", t.key, t.cause)
	}
	return string(t.key)
}

func (t TransactionError) Unwrap() error {
	if t.instructionError != nil {
		return *t.instructionError
	}
	return t.cause
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// JSONString renders the error the way the RPC layer reports it, for example
// {"InstructionError":[2,{"Custom":3}]}.
func (t TransactionError) JSONString() (string, error) {
	var raw interface{} = string(t.key)
	if t.instructionError != nil {
		raw = map[string]interface{}{
			string(TransactionErrorInstructionError): t.instructionError.raw(),
		}
	}

	b, err := json.Marshal(raw)
	return string(b), err
}
