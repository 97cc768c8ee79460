package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
)

const (
	// MaxInvokeDepth is the deepest an instruction may nest cross-program
	// invocations, counting the top level instruction.
	MaxInvokeDepth = 4

	// MaxPermittedDataIncrease is the largest amount an account's data may grow
	// within a single instruction.
	MaxPermittedDataIncrease = 10 * 1024
)

// transactionContext is shared by every instruction of a transaction.
type transactionContext struct {
	ctx           context.Context
	bank          *Bank
	accounts      *workingSet
	unixTimestamp uint64
	logs          []string
}

// InvokeContext is a program's view of the ledger while processing a single
// instruction. Every account access is limited to the accounts named by the
// instruction, with the privileges the instruction was granted.
type InvokeContext struct {
	txn     *transactionContext
	program ed25519.PublicKey
	metas   []solana.AccountMeta
	depth   int
}

func (ic *InvokeContext) Context() context.Context {
	return ic.txn.ctx
}

func (ic *InvokeContext) ProgramID() ed25519.PublicKey {
	return ic.program
}

// UnixTimestamp is the ledger time the transaction executes at. It is fixed for
// the duration of the transaction.
func (ic *InvokeContext) UnixTimestamp() uint64 {
	return ic.txn.unixTimestamp
}

// MinimumBalance returns the rent exempt minimum for an account holding size
// bytes.
func (ic *InvokeContext) MinimumBalance(size uint64) uint64 {
	return system.MinimumBalance(size)
}

// Logf appends a message to the transaction logs.
func (ic *InvokeContext) Logf(format string, args ...interface{}) {
	ic.log("Program log: " + fmt.Sprintf(format, args...))
}

func (ic *InvokeContext) log(message string) {
	ic.txn.logs = append(ic.txn.logs, message)
}

// IsSigner returns whether the instruction grants signer privilege for key.
func (ic *InvokeContext) IsSigner(key ed25519.PublicKey) bool {
	meta, ok := ic.meta(key)
	return ok && meta.IsSigner
}

// IsWritable returns whether the instruction grants write privilege for key.
func (ic *InvokeContext) IsWritable(key ed25519.PublicKey) bool {
	meta, ok := ic.meta(key)
	return ok && meta.IsWritable
}

// GetAccountInfo returns a copy of the current state of an instruction account.
// Accounts that have never been created are returned as empty system accounts.
func (ic *InvokeContext) GetAccountInfo(key ed25519.PublicKey) (solana.AccountInfo, error) {
	a, err := ic.account(key)
	if err != nil {
		return solana.AccountInfo{}, err
	}

	data := make([]byte, len(a.data))
	copy(data, a.data)

	return solana.AccountInfo{
		Data:       data,
		Owner:      a.owner,
		Lamports:   a.lamports,
		Executable: a.executable,
	}, nil
}

// Exists returns whether an instruction account holds any state.
func (ic *InvokeContext) Exists(key ed25519.PublicKey) (bool, error) {
	a, err := ic.account(key)
	if err != nil {
		return false, err
	}
	return a.exists(), nil
}

// SetData replaces the data of an account owned by the invoking program.
func (ic *InvokeContext) SetData(key ed25519.PublicKey, data []byte) error {
	a, err := ic.ownedWritableAccount(key)
	if err != nil {
		return err
	}

	if len(data) > len(a.data)+MaxPermittedDataIncrease {
		return errors.Wrapf(solana.InstructionErrorInvalidArgument, "data increase too large for %s", base58.Encode(key))
	}

	a.data = make([]byte, len(data))
	copy(a.data, data)
	a.modified = true
	return nil
}

// Allocate sizes the zeroed data of an empty account owned by the invoking
// program.
func (ic *InvokeContext) Allocate(key ed25519.PublicKey, space uint64) error {
	a, err := ic.ownedWritableAccount(key)
	if err != nil {
		return err
	}

	if len(a.data) > 0 {
		return errors.Wrapf(solana.InstructionErrorAccountAlreadyInitialized, "%s already has data", base58.Encode(key))
	}
	if space > MaxPermittedDataIncrease {
		return errors.Wrapf(solana.InstructionErrorInvalidArgument, "space %d too large", space)
	}

	a.data = make([]byte, space)
	a.modified = true
	return nil
}

// Assign changes the owner of an account owned by the invoking program.
func (ic *InvokeContext) Assign(key, owner ed25519.PublicKey) error {
	a, err := ic.ownedWritableAccount(key)
	if err != nil {
		return err
	}

	if len(owner) != ed25519.PublicKeySize {
		return errors.Wrap(solana.InstructionErrorInvalidArgument, "invalid owner")
	}

	a.owner = append(ed25519.PublicKey(nil), owner...)
	a.modified = true
	return nil
}

// TransferLamports moves lamports between instruction accounts. Only the owner
// of the source account may debit it.
func (ic *InvokeContext) TransferLamports(from, to ed25519.PublicKey, lamports uint64) error {
	source, err := ic.ownedWritableAccount(from)
	if err != nil {
		return err
	}

	destination, err := ic.writableAccount(to)
	if err != nil {
		return err
	}

	if source.lamports < lamports {
		return errors.Wrapf(
			solana.InstructionErrorInsufficientFunds,
			"%s has %d lamports, needs %d",
			base58.Encode(from),
			source.lamports,
			lamports,
		)
	}
	if destination.lamports+lamports < destination.lamports {
		return errors.Wrap(solana.InstructionErrorInvalidArgument, "lamport overflow")
	}

	source.lamports -= lamports
	destination.lamports += lamports
	source.modified = true
	destination.modified = true
	return nil
}

// Invoke runs ix as a cross-program invocation. The callee receives at most the
// privileges the caller holds for each account.
func (ic *InvokeContext) Invoke(ix solana.Instruction) error {
	return ic.InvokeSigned(ix)
}

// InvokeSigned is like Invoke, but additionally grants signer privilege to each
// program derived address of the calling program created from signerSeeds.
func (ic *InvokeContext) InvokeSigned(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if ic.depth+1 > MaxInvokeDepth {
		return solana.InstructionErrorCallDepth
	}

	var pdas []ed25519.PublicKey
	for _, seeds := range signerSeeds {
		pda, err := solana.CreateProgramAddress(ic.program, seeds...)
		if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidSeeds, err.Error())
		}
		pdas = append(pdas, pda)
	}

	if _, ok := ic.txn.accounts.get(ix.Program); !ok {
		return errors.Wrapf(solana.InstructionErrorMissingAccount, "program %s not in transaction", base58.Encode(ix.Program))
	}

	for _, meta := range ix.Accounts {
		callerMeta, ok := ic.meta(meta.PublicKey)
		if !ok {
			return errors.Wrapf(solana.InstructionErrorMissingAccount, "%s", base58.Encode(meta.PublicKey))
		}

		if meta.IsWritable && !callerMeta.IsWritable {
			return errors.Wrapf(solana.InstructionErrorPrivilegeEscalation, "%s writable privilege escalated", base58.Encode(meta.PublicKey))
		}

		if meta.IsSigner && !callerMeta.IsSigner && !containsKey(pdas, meta.PublicKey) {
			return errors.Wrapf(solana.InstructionErrorPrivilegeEscalation, "%s signer privilege escalated", base58.Encode(meta.PublicKey))
		}
	}

	callee := &InvokeContext{
		txn:     ic.txn,
		program: ix.Program,
		metas:   ix.Accounts,
		depth:   ic.depth + 1,
	}
	return callee.process(ix)
}

func (ic *InvokeContext) process(ix solana.Instruction) error {
	programID := base58.Encode(ic.program)

	ic.log(fmt.Sprintf("Program %s invoke [%d]", programID, ic.depth))

	program, ok := ic.txn.bank.program(ic.program)
	if !ok {
		ic.log(fmt.Sprintf("Program %s failed: unsupported program", programID))
		return solana.InstructionErrorUnsupportedProgramID
	}

	if err := program.Process(ic, ix); err != nil {
		ic.log(fmt.Sprintf("Program %s failed: %v", programID, err))
		return err
	}

	ic.log(fmt.Sprintf("Program %s success", programID))
	return nil
}

func (ic *InvokeContext) meta(key ed25519.PublicKey) (solana.AccountMeta, bool) {
	var res solana.AccountMeta
	var found bool

	// The same key may appear more than once, in which case privileges are
	// the union of every occurrence.
	for _, meta := range ic.metas {
		if !bytes.Equal(meta.PublicKey, key) {
			continue
		}

		if !found {
			res = meta
			found = true
			continue
		}

		res.IsSigner = res.IsSigner || meta.IsSigner
		res.IsWritable = res.IsWritable || meta.IsWritable
	}

	return res, found
}

func (ic *InvokeContext) account(key ed25519.PublicKey) (*workingAccount, error) {
	if _, ok := ic.meta(key); !ok {
		return nil, errors.Wrapf(solana.InstructionErrorMissingAccount, "%s", base58.Encode(key))
	}

	a, ok := ic.txn.accounts.get(key)
	if !ok {
		return nil, errors.Wrapf(solana.InstructionErrorMissingAccount, "%s not loaded", base58.Encode(key))
	}
	return a, nil
}

func (ic *InvokeContext) writableAccount(key ed25519.PublicKey) (*workingAccount, error) {
	a, err := ic.account(key)
	if err != nil {
		return nil, err
	}

	if !ic.IsWritable(key) {
		return nil, errors.Wrapf(solana.InstructionErrorReadonlyDataModified, "%s", base58.Encode(key))
	}
	return a, nil
}

func (ic *InvokeContext) ownedWritableAccount(key ed25519.PublicKey) (*workingAccount, error) {
	a, err := ic.writableAccount(key)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(a.owner, ic.program) {
		return nil, errors.Wrapf(solana.InstructionErrorIllegalOwner, "%s not owned by %s", base58.Encode(key), base58.Encode(ic.program))
	}
	return a, nil
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
