package system

import (
	"bytes"
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/binary"
)

var ProgramKey [32]byte

// Command is the little endian u32 that prefixes system instruction data.
type Command uint32

const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
)

const commandSize = 4

// GetCommand returns the system command encoded in the instruction data.
func GetCommand(data []byte) (Command, error) {
	if len(data) < commandSize {
		return 0, solana.ErrIncorrectInstruction
	}

	command, err := bin.NewBinDecoder(data).ReadUint32(bin.LE)
	return Command(command), err
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

// CreateAccount allocates size zeroed bytes at address, assigns the account to
// owner and funds it with lamports taken from funder. Both funder and address
// sign.
//
// Data: command, lamports u64, space u64, owner pubkey.
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	data := encode(CommandCreateAccount, func(encoder *bin.Encoder) error {
		if err := encoder.WriteUint64(lamports, bin.LE); err != nil {
			return err
		}
		if err := encoder.WriteUint64(size, bin.LE); err != nil {
			return err
		}
		return binary.WriteKey(encoder, owner)
	})

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// DecodeCreateAccount parses an uncompiled CreateAccount instruction.
func DecodeCreateAccount(ix solana.Instruction) (*DecompiledCreateAccount, error) {
	decoder, err := decoderFor(ix, CommandCreateAccount, 8+8+ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}

	decoded := &DecompiledCreateAccount{
		Funder:  ix.Accounts[0].PublicKey,
		Address: ix.Accounts[1].PublicKey,
	}
	if decoded.Lamports, err = decoder.ReadUint64(bin.LE); err != nil {
		return nil, err
	}
	if decoded.Size, err = decoder.ReadUint64(bin.LE); err != nil {
		return nil, err
	}
	if decoded.Owner, err = binary.ReadKey(decoder); err != nil {
		return nil, err
	}
	return decoded, nil
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

// Transfer moves lamports from the signing from account to to.
//
// Data: command, lamports u64.
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	data := encode(CommandTransfer, func(encoder *bin.Encoder) error {
		return encoder.WriteUint64(lamports, bin.LE)
	})

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

// DecodeTransfer parses an uncompiled Transfer instruction.
func DecodeTransfer(ix solana.Instruction) (*DecompiledTransfer, error) {
	decoder, err := decoderFor(ix, CommandTransfer, 8)
	if err != nil {
		return nil, err
	}

	lamports, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransfer{
		From:     ix.Accounts[0].PublicKey,
		To:       ix.Accounts[1].PublicKey,
		Lamports: lamports,
	}, nil
}

// encode returns nil if an argument can't be encoded, such as a key of the
// wrong length, which the ledger then rejects as invalid instruction data.
func encode(command Command, args func(*bin.Encoder) error) []byte {
	var buf bytes.Buffer
	encoder := bin.NewBinEncoder(&buf)

	if err := encoder.WriteUint32(uint32(command), bin.LE); err != nil {
		return nil
	}
	if err := args(encoder); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decoderFor checks that ix is a two account system instruction for command
// carrying argsSize bytes of arguments, and returns a decoder positioned at
// the arguments.
func decoderFor(ix solana.Instruction, command Command, argsSize int) (*bin.Decoder, error) {
	if !bytes.Equal(ix.Program, ProgramKey[:]) {
		return nil, solana.ErrIncorrectProgram
	}

	actual, err := GetCommand(ix.Data)
	if err != nil {
		return nil, err
	}
	if actual != command {
		return nil, solana.ErrIncorrectInstruction
	}

	if len(ix.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}
	if len(ix.Data) != commandSize+argsSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	return bin.NewBinDecoder(ix.Data[commandSize:]), nil
}
