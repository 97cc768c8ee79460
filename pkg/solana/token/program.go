package token

import (
	"bytes"
	"crypto/ed25519"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/system"
)

// ProgramKey is the address of the token program that should be used.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

type Command byte

const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount

	CommandUnknown = Command(math.MaxUint8)
)

const (
	ErrorNotRentExempt solana.CustomError = iota
	ErrorInsufficientFunds
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
	ErrorFixedSupply
	ErrorAlreadyInUse
	ErrorInvalidNumberOfProvidedSigners
	ErrorInvalidNumberOfRequiredSigners
	ErrorUninitializedState
	ErrorNativeNotSupported
	ErrorNonNativeHasBalance
	ErrorInvalidInstruction
	ErrorInvalidState
	ErrorOverflow
	ErrorAuthorityTypeNotSupported
	ErrorMintCannotFreeze
	ErrorAccountFrozen
	ErrorMintDecimalsMismatch
)

// GetCommand returns the token command of the instruction.
func GetCommand(ix solana.Instruction) (Command, error) {
	if !bytes.Equal(ix.Program, ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(ix.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}
	return Command(ix.Data[0]), nil
}

// InitializeMint sets up mint with 'decimals' decimal places and no freeze
// authority.
//
// Accounts: [writable] mint, [] rent sysvar
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L23-L37
func InitializeMint(mint, mintAuthority ed25519.PublicKey, decimals byte) solana.Instruction {
	data := []byte{byte(CommandInitializeMint), decimals}
	data = append(data, mintAuthority...)
	data = append(data, 0)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

type DecompiledInitializeMint struct {
	Mint          ed25519.PublicKey
	MintAuthority ed25519.PublicKey
	Decimals      byte
}

func DecodeInitializeMint(ix solana.Instruction) (*DecompiledInitializeMint, error) {
	if err := checkInstruction(ix, CommandInitializeMint, 2); err != nil {
		return nil, err
	}
	if len(ix.Data) < 2+ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid data size: %d", len(ix.Data))
	}

	return &DecompiledInitializeMint{
		Mint:          ix.Accounts[0].PublicKey,
		MintAuthority: ix.Data[2 : 2+ed25519.PublicKeySize],
		Decimals:      ix.Data[1],
	}, nil
}

// InitializeAccount sets up account to hold mint on behalf of owner.
//
// Accounts: [writable] account, [] mint, [] owner, [] rent sysvar
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L41-L55
func InitializeAccount(account, mint, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

type DecompiledInitializeAccount struct {
	Account ed25519.PublicKey
	Mint    ed25519.PublicKey
	Owner   ed25519.PublicKey
}

func DecodeInitializeAccount(ix solana.Instruction) (*DecompiledInitializeAccount, error) {
	if err := checkInstruction(ix, CommandInitializeAccount, 4); err != nil {
		return nil, err
	}
	if len(ix.Data) != 1 {
		return nil, solana.ErrIncorrectInstruction
	}
	if !bytes.Equal(system.RentSysVar, ix.Accounts[3].PublicKey) {
		return nil, errors.New("invalid rent program")
	}

	return &DecompiledInitializeAccount{
		Account: ix.Accounts[0].PublicKey,
		Mint:    ix.Accounts[1].PublicKey,
		Owner:   ix.Accounts[2].PublicKey,
	}, nil
}

// Transfer moves amount from source to dest.
//
// Accounts: [writable] source, [writable] destination, [signer] owner
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L76-L91
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	return amountInstruction(CommandTransfer, source, dest, owner, amount)
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
}

func DecodeTransfer(ix solana.Instruction) (*DecompiledTransfer, error) {
	amount, err := decodeAmountInstruction(ix, CommandTransfer)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransfer{
		Source:      ix.Accounts[0].PublicKey,
		Destination: ix.Accounts[1].PublicKey,
		Owner:       ix.Accounts[2].PublicKey,
		Amount:      amount,
	}, nil
}

// MintTo creates amount new tokens of mint in dest.
//
// Accounts: [writable] mint, [writable] destination, [signer] mint authority
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L155-L167
func MintTo(mint, dest, mintAuthority ed25519.PublicKey, amount uint64) solana.Instruction {
	return amountInstruction(CommandMintTo, mint, dest, mintAuthority, amount)
}

type DecompiledMintTo struct {
	Mint          ed25519.PublicKey
	Destination   ed25519.PublicKey
	MintAuthority ed25519.PublicKey
	Amount        uint64
}

func DecodeMintTo(ix solana.Instruction) (*DecompiledMintTo, error) {
	amount, err := decodeAmountInstruction(ix, CommandMintTo)
	if err != nil {
		return nil, err
	}

	return &DecompiledMintTo{
		Mint:          ix.Accounts[0].PublicKey,
		Destination:   ix.Accounts[1].PublicKey,
		MintAuthority: ix.Accounts[2].PublicKey,
		Amount:        amount,
	}, nil
}

// amountInstruction builds the layout shared by Transfer and MintTo: two
// writable accounts and a signing authority, with a little endian u64 amount.
func amountInstruction(command Command, from, to, authority ed25519.PublicKey, amount uint64) solana.Instruction {
	buf := bytes.NewBuffer([]byte{byte(command)})
	_ = bin.NewBinEncoder(buf).WriteUint64(amount, bin.LE)

	return solana.NewInstruction(
		ProgramKey,
		buf.Bytes(),
		solana.NewAccountMeta(from, false),
		solana.NewAccountMeta(to, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func decodeAmountInstruction(ix solana.Instruction, command Command) (uint64, error) {
	if err := checkInstruction(ix, command, 3); err != nil {
		return 0, err
	}
	if len(ix.Data) != 9 {
		return 0, errors.Errorf("invalid data size: %d (expect 9)", len(ix.Data))
	}
	return bin.NewBinDecoder(ix.Data[1:]).ReadUint64(bin.LE)
}

func checkInstruction(ix solana.Instruction, command Command, accounts int) error {
	if !bytes.Equal(ix.Program, ProgramKey) {
		return solana.ErrIncorrectProgram
	}
	if len(ix.Data) == 0 || Command(ix.Data[0]) != command {
		return solana.ErrIncorrectInstruction
	}
	if len(ix.Accounts) != accounts {
		return errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}
	return nil
}
