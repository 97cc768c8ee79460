package token_escrow

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

const (
	UnlockInstructionArgsSize = 8 // nonce

	UnlockInstructionSize = (1 + // tag
		UnlockInstructionArgsSize)

	UnlockInstructionAccountsCount = 11
)

type UnlockInstructionArgs struct {
	// Nonce disambiguates otherwise identical unlock transactions. It has no
	// effect on the funds moved.
	Nonce uint64
}

type UnlockInstructionAccounts struct {
	Receiver             ed25519.PublicKey
	Sender               ed25519.PublicKey
	VaultAuthority       ed25519.PublicKey
	EscrowState          ed25519.PublicKey
	VaultTokenAccount    ed25519.PublicKey
	ReceiverTokenAccount ed25519.PublicKey
	Mint                 ed25519.PublicKey
}

type unlockInstructionData struct {
	Tag   uint8
	Nonce uint64
}

// GetUnlockInstructionAccounts derives the vault and receiver token addresses
// for unlocking the escrow stored at escrowState.
func GetUnlockInstructionAccounts(escrowState, sender, receiver, mint ed25519.PublicKey) (*UnlockInstructionAccounts, error) {
	deposit, err := GetDepositInstructionAccounts(sender, escrowState, receiver, mint)
	if err != nil {
		return nil, err
	}

	receiverTokenAccount, err := token.GetAssociatedAccount(receiver, mint)
	if err != nil {
		return nil, err
	}

	return &UnlockInstructionAccounts{
		Receiver:             receiver,
		Sender:               sender,
		VaultAuthority:       deposit.VaultAuthority,
		EscrowState:          escrowState,
		VaultTokenAccount:    deposit.VaultTokenAccount,
		ReceiverTokenAccount: receiverTokenAccount,
		Mint:                 mint,
	}, nil
}

func NewUnlockInstruction(
	accounts *UnlockInstructionAccounts,
	args *UnlockInstructionArgs,
) solana.Instruction {
	data := encodeInstructionData(unlockInstructionData{
		Tag:   uint8(InstructionTypeUnlock),
		Nonce: args.Nonce,
	})

	return solana.NewInstruction(
		PROGRAM_ID,
		data,
		solana.NewReadonlyAccountMeta(accounts.Receiver, false),
		solana.NewReadonlyAccountMeta(accounts.Sender, false),
		solana.NewAccountMeta(accounts.VaultAuthority, false),
		solana.NewAccountMeta(accounts.EscrowState, false),
		solana.NewAccountMeta(accounts.VaultTokenAccount, false),
		solana.NewAccountMeta(accounts.ReceiverTokenAccount, false),
		solana.NewReadonlyAccountMeta(accounts.Mint, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(token.AssociatedTokenAccountProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

func UnlockInstructionFromBinary(data []byte) (*UnlockInstructionArgs, error) {
	decoded, err := DecodeInstruction(data)
	if err != nil {
		return nil, err
	}
	if decoded.Type != InstructionTypeUnlock {
		return nil, ErrInvalidInstruction
	}
	return decoded.Unlock, nil
}

// DecompileUnlockInstruction parses an unlock instruction and names its
// accounts.
func DecompileUnlockInstruction(ix solana.Instruction) (*UnlockInstructionArgs, *UnlockInstructionAccounts, error) {
	if !bytes.Equal(ix.Program, PROGRAM_ID) {
		return nil, nil, solana.ErrIncorrectProgram
	}

	args, err := UnlockInstructionFromBinary(ix.Data)
	if err != nil {
		return nil, nil, err
	}

	if len(ix.Accounts) < UnlockInstructionAccountsCount {
		return nil, nil, ErrNotEnoughAccountKeys
	}

	return args, &UnlockInstructionAccounts{
		Receiver:             ix.Accounts[0].PublicKey,
		Sender:               ix.Accounts[1].PublicKey,
		VaultAuthority:       ix.Accounts[2].PublicKey,
		EscrowState:          ix.Accounts[3].PublicKey,
		VaultTokenAccount:    ix.Accounts[4].PublicKey,
		ReceiverTokenAccount: ix.Accounts[5].PublicKey,
		Mint:                 ix.Accounts[6].PublicKey,
	}, nil
}
