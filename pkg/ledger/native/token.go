package native

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

// TokenProgram implements the subset of the token program needed to mint and
// move fungible tokens between holding accounts.
type TokenProgram struct{}

func (TokenProgram) ID() ed25519.PublicKey {
	return token.ProgramKey
}

func (p TokenProgram) Process(ic *ledger.InvokeContext, ix solana.Instruction) error {
	command, err := token.GetCommand(ix)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	switch command {
	case token.CommandInitializeMint:
		decoded, err := token.DecodeInitializeMint(ix)
		if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
		}
		ic.Logf("Instruction: InitializeMint")
		return p.initializeMint(ic, decoded)
	case token.CommandInitializeAccount:
		decoded, err := token.DecodeInitializeAccount(ix)
		if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
		}
		ic.Logf("Instruction: InitializeAccount")
		return p.initializeAccount(ic, decoded)
	case token.CommandTransfer:
		decoded, err := token.DecodeTransfer(ix)
		if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
		}
		ic.Logf("Instruction: Transfer")
		return p.transfer(ic, decoded)
	case token.CommandMintTo:
		decoded, err := token.DecodeMintTo(ix)
		if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
		}
		ic.Logf("Instruction: MintTo")
		return p.mintTo(ic, decoded)
	default:
		return token.ErrorInvalidInstruction
	}
}

func (p TokenProgram) initializeMint(ic *ledger.InvokeContext, ix *token.DecompiledInitializeMint) error {
	var mint token.Mint
	if err := p.loadMint(ic, ix.Mint, &mint); err != nil {
		return err
	}
	if mint.IsInitialized {
		return token.ErrorAlreadyInUse
	}

	mint = token.Mint{
		MintAuthority: ix.MintAuthority,
		Decimals:      ix.Decimals,
		IsInitialized: true,
	}
	return ic.SetData(ix.Mint, mint.Marshal())
}

func (p TokenProgram) initializeAccount(ic *ledger.InvokeContext, ix *token.DecompiledInitializeAccount) error {
	var holding token.Account
	if err := p.loadAccount(ic, ix.Account, &holding); err != nil {
		return err
	}
	if holding.State != token.AccountStateUninitialized {
		return token.ErrorAlreadyInUse
	}

	var mint token.Mint
	if err := p.loadMint(ic, ix.Mint, &mint); err != nil {
		return err
	}
	if !mint.IsInitialized {
		return token.ErrorInvalidMint
	}

	holding = token.Account{
		Mint:  ix.Mint,
		Owner: ix.Owner,
		State: token.AccountStateInitialized,
	}
	return ic.SetData(ix.Account, holding.Marshal())
}

func (p TokenProgram) transfer(ic *ledger.InvokeContext, ix *token.DecompiledTransfer) error {
	var source, destination token.Account
	if err := p.loadInitializedAccount(ic, ix.Source, &source); err != nil {
		return err
	}
	if err := p.loadInitializedAccount(ic, ix.Destination, &destination); err != nil {
		return err
	}

	if !bytes.Equal(source.Mint, destination.Mint) {
		return token.ErrorMintMismatch
	}
	if !bytes.Equal(source.Owner, ix.Owner) {
		return token.ErrorOwnerMismatch
	}
	if !ic.IsSigner(ix.Owner) {
		return errors.Wrapf(solana.InstructionErrorMissingRequiredSignature, "owner %s", base58.Encode(ix.Owner))
	}
	if source.Amount < ix.Amount {
		return token.ErrorInsufficientFunds
	}

	// Self transfers are checked, but don't change any balance
	if bytes.Equal(ix.Source, ix.Destination) {
		return nil
	}

	if destination.Amount+ix.Amount < destination.Amount {
		return token.ErrorOverflow
	}

	source.Amount -= ix.Amount
	destination.Amount += ix.Amount

	if err := ic.SetData(ix.Source, source.Marshal()); err != nil {
		return err
	}
	return ic.SetData(ix.Destination, destination.Marshal())
}

func (p TokenProgram) mintTo(ic *ledger.InvokeContext, ix *token.DecompiledMintTo) error {
	var mint token.Mint
	if err := p.loadMint(ic, ix.Mint, &mint); err != nil {
		return err
	}
	if !mint.IsInitialized {
		return token.ErrorUninitializedState
	}

	var destination token.Account
	if err := p.loadInitializedAccount(ic, ix.Destination, &destination); err != nil {
		return err
	}

	if !bytes.Equal(destination.Mint, ix.Mint) {
		return token.ErrorMintMismatch
	}
	if mint.MintAuthority == nil {
		return token.ErrorFixedSupply
	}
	if !bytes.Equal(mint.MintAuthority, ix.MintAuthority) {
		return token.ErrorOwnerMismatch
	}
	if !ic.IsSigner(ix.MintAuthority) {
		return errors.Wrapf(solana.InstructionErrorMissingRequiredSignature, "mint authority %s", base58.Encode(ix.MintAuthority))
	}

	if mint.Supply+ix.Amount < mint.Supply || destination.Amount+ix.Amount < destination.Amount {
		return token.ErrorOverflow
	}

	mint.Supply += ix.Amount
	destination.Amount += ix.Amount

	if err := ic.SetData(ix.Mint, mint.Marshal()); err != nil {
		return err
	}
	return ic.SetData(ix.Destination, destination.Marshal())
}

func (p TokenProgram) loadMint(ic *ledger.InvokeContext, key ed25519.PublicKey, dst *token.Mint) error {
	info, err := ic.GetAccountInfo(key)
	if err != nil {
		return err
	}
	if !bytes.Equal(info.Owner, token.ProgramKey) {
		return errors.Wrapf(solana.InstructionErrorIncorrectProgramID, "mint %s not owned by token program", base58.Encode(key))
	}
	if !dst.Unmarshal(info.Data) {
		return token.ErrorInvalidMint
	}
	return nil
}

func (p TokenProgram) loadAccount(ic *ledger.InvokeContext, key ed25519.PublicKey, dst *token.Account) error {
	info, err := ic.GetAccountInfo(key)
	if err != nil {
		return err
	}
	if !bytes.Equal(info.Owner, token.ProgramKey) {
		return errors.Wrapf(solana.InstructionErrorIncorrectProgramID, "account %s not owned by token program", base58.Encode(key))
	}
	if !dst.Unmarshal(info.Data) {
		return token.ErrorInvalidState
	}
	return nil
}

func (p TokenProgram) loadInitializedAccount(ic *ledger.InvokeContext, key ed25519.PublicKey, dst *token.Account) error {
	if err := p.loadAccount(ic, key, dst); err != nil {
		return err
	}
	if dst.State == token.AccountStateUninitialized {
		return token.ErrorUninitializedState
	}
	return nil
}
