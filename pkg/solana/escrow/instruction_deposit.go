package token_escrow

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

const (
	DepositInstructionArgsSize = (8 + // amount
		8) // end_time

	DepositInstructionSize = (1 + // tag
		DepositInstructionArgsSize)

	DepositInstructionAccountsCount = 11
)

type DepositInstructionArgs struct {
	Amount  uint64
	EndTime uint64
}

type DepositInstructionAccounts struct {
	Sender             ed25519.PublicKey
	VaultAuthority     ed25519.PublicKey
	VaultTokenAccount  ed25519.PublicKey
	SenderTokenAccount ed25519.PublicKey
	EscrowState        ed25519.PublicKey
	Receiver           ed25519.PublicKey
	Mint               ed25519.PublicKey
}

type depositInstructionData struct {
	Tag     uint8
	Amount  uint64
	EndTime uint64
}

// GetDepositInstructionAccounts derives the vault addresses and the sender's
// associated token account for a deposit into a fresh escrow state account.
func GetDepositInstructionAccounts(sender, escrowState, receiver, mint ed25519.PublicKey) (*DepositInstructionAccounts, error) {
	vaultAuthority, _, err := GetVaultAuthorityAddress(&GetVaultAuthorityAddressArgs{
		Receiver: receiver,
	})
	if err != nil {
		return nil, err
	}

	vaultTokenAccount, err := GetVaultTokenAddress(&GetVaultTokenAddressArgs{
		VaultAuthority: vaultAuthority,
		Mint:           mint,
	})
	if err != nil {
		return nil, err
	}

	senderTokenAccount, err := token.GetAssociatedAccount(sender, mint)
	if err != nil {
		return nil, err
	}

	return &DepositInstructionAccounts{
		Sender:             sender,
		VaultAuthority:     vaultAuthority,
		VaultTokenAccount:  vaultTokenAccount,
		SenderTokenAccount: senderTokenAccount,
		EscrowState:        escrowState,
		Receiver:           receiver,
		Mint:               mint,
	}, nil
}

func NewDepositInstruction(
	accounts *DepositInstructionAccounts,
	args *DepositInstructionArgs,
) solana.Instruction {
	data := encodeInstructionData(depositInstructionData{
		Tag:     uint8(InstructionTypeDeposit),
		Amount:  args.Amount,
		EndTime: args.EndTime,
	})

	return solana.NewInstruction(
		PROGRAM_ID,
		data,
		solana.NewAccountMeta(accounts.Sender, true),
		solana.NewReadonlyAccountMeta(accounts.VaultAuthority, false),
		solana.NewAccountMeta(accounts.VaultTokenAccount, false),
		solana.NewAccountMeta(accounts.SenderTokenAccount, false),
		solana.NewAccountMeta(accounts.EscrowState, true),
		solana.NewReadonlyAccountMeta(accounts.Receiver, false),
		solana.NewReadonlyAccountMeta(accounts.Mint, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(token.AssociatedTokenAccountProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

func DepositInstructionFromBinary(data []byte) (*DepositInstructionArgs, error) {
	decoded, err := DecodeInstruction(data)
	if err != nil {
		return nil, err
	}
	if decoded.Type != InstructionTypeDeposit {
		return nil, ErrInvalidInstruction
	}
	return decoded.Deposit, nil
}

// DecompileDepositInstruction parses a deposit instruction and names its
// accounts.
func DecompileDepositInstruction(ix solana.Instruction) (*DepositInstructionArgs, *DepositInstructionAccounts, error) {
	if !bytes.Equal(ix.Program, PROGRAM_ID) {
		return nil, nil, solana.ErrIncorrectProgram
	}

	args, err := DepositInstructionFromBinary(ix.Data)
	if err != nil {
		return nil, nil, err
	}

	if len(ix.Accounts) < DepositInstructionAccountsCount {
		return nil, nil, ErrNotEnoughAccountKeys
	}

	return args, &DepositInstructionAccounts{
		Sender:             ix.Accounts[0].PublicKey,
		VaultAuthority:     ix.Accounts[1].PublicKey,
		VaultTokenAccount:  ix.Accounts[2].PublicKey,
		SenderTokenAccount: ix.Accounts[3].PublicKey,
		EscrowState:        ix.Accounts[4].PublicKey,
		Receiver:           ix.Accounts[5].PublicKey,
		Mint:               ix.Accounts[6].PublicKey,
	}, nil
}
