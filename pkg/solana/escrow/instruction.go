package token_escrow

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
)

type InstructionType uint8

const (
	InstructionTypeDeposit InstructionType = iota
	InstructionTypeUnlock
)

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeDeposit:
		return "deposit"
	case InstructionTypeUnlock:
		return "unlock"
	}
	return "unknown"
}

// Instruction is a decoded escrow instruction. Exactly one of Deposit or Unlock
// is set, matching Type.
type Instruction struct {
	Type    InstructionType
	Deposit *DepositInstructionArgs
	Unlock  *UnlockInstructionArgs
}

// DecodeInstruction parses raw instruction data. Bytes following the fixed
// width fields are ignored.
func DecodeInstruction(data []byte) (*Instruction, error) {
	decoder := bin.NewBinDecoder(data)

	tag, err := decoder.ReadUint8()
	if err != nil {
		return nil, ErrInvalidInstruction
	}

	switch InstructionType(tag) {
	case InstructionTypeDeposit:
		var args DepositInstructionArgs
		if args.Amount, err = decoder.ReadUint64(bin.LE); err != nil {
			return nil, ErrInvalidInstruction
		}
		if args.EndTime, err = decoder.ReadUint64(bin.LE); err != nil {
			return nil, ErrInvalidInstruction
		}
		return &Instruction{Type: InstructionTypeDeposit, Deposit: &args}, nil
	case InstructionTypeUnlock:
		var args UnlockInstructionArgs
		if args.Nonce, err = decoder.ReadUint64(bin.LE); err != nil {
			return nil, ErrInvalidInstruction
		}
		return &Instruction{Type: InstructionTypeUnlock, Unlock: &args}, nil
	default:
		return nil, ErrInvalidInstruction
	}
}

func encodeInstructionData(v interface{}) []byte {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		// Fixed width integer fields cannot fail to encode
		panic(err)
	}
	return buf.Bytes()
}
