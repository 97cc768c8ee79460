package escrow

import (
	"bytes"

	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
	"github.com/code-payments/token-escrow/pkg/solana/system"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

// DepositAccounts names the positional accounts of a deposit instruction.
type DepositAccounts struct {
	Sender                 solana.AccountMeta
	VaultAuthority         solana.AccountMeta
	VaultTokenAccount      solana.AccountMeta
	SenderTokenAccount     solana.AccountMeta
	EscrowState            solana.AccountMeta
	Receiver               solana.AccountMeta
	Mint                   solana.AccountMeta
	TokenProgram           solana.AccountMeta
	AssociatedTokenProgram solana.AccountMeta
	SystemProgram          solana.AccountMeta
	Rent                   solana.AccountMeta
}

// BindDepositAccounts binds an instruction's account list to the deposit roles.
func BindDepositAccounts(metas []solana.AccountMeta) (*DepositAccounts, error) {
	if len(metas) < token_escrow.DepositInstructionAccountsCount {
		return nil, token_escrow.ErrNotEnoughAccountKeys
	}

	return &DepositAccounts{
		Sender:                 metas[0],
		VaultAuthority:         metas[1],
		VaultTokenAccount:      metas[2],
		SenderTokenAccount:     metas[3],
		EscrowState:            metas[4],
		Receiver:               metas[5],
		Mint:                   metas[6],
		TokenProgram:           metas[7],
		AssociatedTokenProgram: metas[8],
		SystemProgram:          metas[9],
		Rent:                   metas[10],
	}, nil
}

func (a *DepositAccounts) hasCanonicalPrograms() bool {
	return hasCanonicalPrograms(a.TokenProgram, a.AssociatedTokenProgram, a.SystemProgram)
}

// UnlockAccounts names the positional accounts of an unlock instruction.
type UnlockAccounts struct {
	Receiver               solana.AccountMeta
	Sender                 solana.AccountMeta
	VaultAuthority         solana.AccountMeta
	EscrowState            solana.AccountMeta
	VaultTokenAccount      solana.AccountMeta
	ReceiverTokenAccount   solana.AccountMeta
	Mint                   solana.AccountMeta
	TokenProgram           solana.AccountMeta
	AssociatedTokenProgram solana.AccountMeta
	SystemProgram          solana.AccountMeta
	Rent                   solana.AccountMeta
}

// BindUnlockAccounts binds an instruction's account list to the unlock roles.
func BindUnlockAccounts(metas []solana.AccountMeta) (*UnlockAccounts, error) {
	if len(metas) < token_escrow.UnlockInstructionAccountsCount {
		return nil, token_escrow.ErrNotEnoughAccountKeys
	}

	return &UnlockAccounts{
		Receiver:               metas[0],
		Sender:                 metas[1],
		VaultAuthority:         metas[2],
		EscrowState:            metas[3],
		VaultTokenAccount:      metas[4],
		ReceiverTokenAccount:   metas[5],
		Mint:                   metas[6],
		TokenProgram:           metas[7],
		AssociatedTokenProgram: metas[8],
		SystemProgram:          metas[9],
		Rent:                   metas[10],
	}, nil
}

func (a *UnlockAccounts) hasCanonicalPrograms() bool {
	return hasCanonicalPrograms(a.TokenProgram, a.AssociatedTokenProgram, a.SystemProgram)
}

func hasCanonicalPrograms(tokenProgram, associatedTokenProgram, systemProgram solana.AccountMeta) bool {
	return bytes.Equal(tokenProgram.PublicKey, token.ProgramKey) &&
		bytes.Equal(associatedTokenProgram.PublicKey, token.AssociatedTokenAccountProgramKey) &&
		bytes.Equal(systemProgram.PublicKey, system.ProgramKey[:])
}
