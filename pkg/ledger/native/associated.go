package native

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

// AssociatedTokenAccountProgram creates the canonical token account of a
// wallet for a mint.
//
// Token accounts are created without a rent deposit, so a subsidizer only
// needs to sign.
type AssociatedTokenAccountProgram struct{}

func (AssociatedTokenAccountProgram) ID() ed25519.PublicKey {
	return token.AssociatedTokenAccountProgramKey
}

func (p AssociatedTokenAccountProgram) Process(ic *ledger.InvokeContext, ix solana.Instruction) error {
	decoded, err := token.DecodeCreateAssociatedAccount(ix)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	if decoded.Idempotent {
		ic.Logf("Create: idempotent")
	} else {
		ic.Logf("Create")
	}

	address, bump, err := solana.FindProgramAddressAndBump(
		token.AssociatedTokenAccountProgramKey,
		decoded.Owner,
		token.ProgramKey,
		decoded.Mint,
	)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidSeeds, err.Error())
	}
	if !bytes.Equal(address, decoded.Address) {
		return errors.Wrapf(
			solana.InstructionErrorInvalidSeeds,
			"associated address %s does not match derived address %s",
			base58.Encode(decoded.Address),
			base58.Encode(address),
		)
	}

	exists, err := ic.Exists(decoded.Address)
	if err != nil {
		return err
	}
	if exists {
		if !decoded.Idempotent {
			return solana.InstructionErrorAccountAlreadyInitialized
		}
		return p.verifyExisting(ic, decoded)
	}

	err = ic.InvokeSigned(
		system.CreateAccount(decoded.Subsidizer, decoded.Address, token.ProgramKey, 0, token.AccountSize),
		[][]byte{decoded.Owner, token.ProgramKey, decoded.Mint, {bump}},
	)
	if err != nil {
		return err
	}

	return ic.Invoke(token.InitializeAccount(decoded.Address, decoded.Mint, decoded.Owner))
}

func (p AssociatedTokenAccountProgram) verifyExisting(ic *ledger.InvokeContext, ix *token.DecompiledCreateAssociatedAccount) error {
	info, err := ic.GetAccountInfo(ix.Address)
	if err != nil {
		return err
	}
	if !bytes.Equal(info.Owner, token.ProgramKey) {
		return solana.InstructionErrorIllegalOwner
	}

	var existing token.Account
	if !existing.Unmarshal(info.Data) || existing.State == token.AccountStateUninitialized {
		return solana.InstructionErrorInvalidAccountData
	}
	if !bytes.Equal(existing.Owner, ix.Owner) || !bytes.Equal(existing.Mint, ix.Mint) {
		return solana.InstructionErrorInvalidAccountData
	}
	return nil
}
