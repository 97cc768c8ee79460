package native

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
)

// SystemProgram creates accounts and moves lamports.
type SystemProgram struct{}

func (SystemProgram) ID() ed25519.PublicKey {
	return system.ProgramKey[:]
}

func (p SystemProgram) Process(ic *ledger.InvokeContext, ix solana.Instruction) error {
	command, err := system.GetCommand(ix.Data)
	if err != nil {
		return solana.InstructionErrorInvalidInstructionData
	}

	switch command {
	case system.CommandCreateAccount:
		decoded, err := system.DecodeCreateAccount(ix)
		if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
		}
		return p.createAccount(ic, decoded)
	case system.CommandTransfer:
		decoded, err := system.DecodeTransfer(ix)
		if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
		}
		return p.transfer(ic, decoded)
	default:
		return errors.Wrapf(solana.InstructionErrorInvalidInstructionData, "unsupported system command %d", command)
	}
}

func (p SystemProgram) createAccount(ic *ledger.InvokeContext, ix *system.DecompiledCreateAccount) error {
	if !ic.IsSigner(ix.Funder) {
		return errors.Wrapf(solana.InstructionErrorMissingRequiredSignature, "funder %s", base58.Encode(ix.Funder))
	}
	if !ic.IsSigner(ix.Address) {
		return errors.Wrapf(solana.InstructionErrorMissingRequiredSignature, "new account %s", base58.Encode(ix.Address))
	}

	exists, err := ic.Exists(ix.Address)
	if err != nil {
		return err
	}
	if exists {
		ic.Logf("Create Account: account %s already in use", base58.Encode(ix.Address))
		return solana.InstructionErrorAccountAlreadyInitialized
	}

	if ix.Lamports > 0 {
		if err := ic.TransferLamports(ix.Funder, ix.Address, ix.Lamports); err != nil {
			return err
		}
	}
	if err := ic.Allocate(ix.Address, ix.Size); err != nil {
		return err
	}
	return ic.Assign(ix.Address, ix.Owner)
}

func (p SystemProgram) transfer(ic *ledger.InvokeContext, ix *system.DecompiledTransfer) error {
	if !ic.IsSigner(ix.From) {
		return errors.Wrapf(solana.InstructionErrorMissingRequiredSignature, "from %s", base58.Encode(ix.From))
	}

	info, err := ic.GetAccountInfo(ix.From)
	if err != nil {
		return err
	}
	if len(info.Data) > 0 {
		return errors.Wrap(solana.InstructionErrorInvalidArgument, "from must not carry data")
	}

	return ic.TransferLamports(ix.From, ix.To, ix.Lamports)
}
