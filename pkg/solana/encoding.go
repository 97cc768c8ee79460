package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/solana/shortvec"
)

// Marshal encodes the transaction in the legacy wire format: a compact array
// of signatures followed by the message.
func (t Transaction) Marshal() []byte {
	var b bytes.Buffer

	_, _ = shortvec.EncodeLen(&b, len(t.Signatures))
	for _, signature := range t.Signatures {
		b.Write(signature[:])
	}
	b.Write(t.Message.Marshal())

	return b.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := wireReader{bytes.NewReader(b)}

	count, err := r.length("signature", ed25519.SignatureSize)
	if err != nil {
		return err
	}

	signatures := make([]Signature, count)
	for i := range signatures {
		if err := r.full(signatures[i][:]); err != nil {
			return errors.Wrapf(err, "failed to read signature %d", i)
		}
	}

	var m Message
	if err := m.Unmarshal(r.rest()); err != nil {
		return err
	}

	t.Signatures = signatures
	t.Message = m
	return nil
}

// Marshal encodes the message in the legacy wire format. These are the bytes
// covered by transaction signatures.
func (m Message) Marshal() []byte {
	var b bytes.Buffer

	b.Write([]byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly})

	_, _ = shortvec.EncodeLen(&b, len(m.Accounts))
	for _, account := range m.Accounts {
		b.Write(account)
	}

	b.Write(m.RecentBlockhash[:])

	_, _ = shortvec.EncodeLen(&b, len(m.Instructions))
	for _, instruction := range m.Instructions {
		b.WriteByte(instruction.ProgramIndex)
		writeCompact(&b, instruction.Accounts)
		writeCompact(&b, instruction.Data)
	}

	return b.Bytes()
}

// Unmarshal decodes a legacy message. Versioned messages are rejected, as are
// instructions referencing accounts outside the message.
func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}
	if b[0]&0x80 != 0 {
		return errors.New("versioned messages not supported")
	}

	r := wireReader{bytes.NewReader(b)}

	var header [3]byte
	if err := r.full(header[:]); err != nil {
		return errors.Wrap(err, "failed to read header")
	}

	accountCount, err := r.length("account", ed25519.PublicKeySize)
	if err != nil {
		return err
	}
	accounts := make([]ed25519.PublicKey, accountCount)
	for i := range accounts {
		accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		if err := r.full(accounts[i]); err != nil {
			return errors.Wrapf(err, "failed to read account %d", i)
		}
	}

	var blockhash Blockhash
	if err := r.full(blockhash[:]); err != nil {
		return errors.Wrap(err, "failed to read recent blockhash")
	}

	// Every instruction takes at least three bytes
	instructionCount, err := r.length("instruction", 3)
	if err != nil {
		return err
	}
	instructions := make([]CompiledInstruction, instructionCount)
	for i := range instructions {
		c, err := r.instruction(len(accounts))
		if err != nil {
			return errors.Wrapf(err, "failed to read instruction %d", i)
		}
		instructions[i] = c
	}

	*m = Message{
		Header: Header{
			NumSignatures:     header[0],
			NumReadonlySigned: header[1],
			NumReadOnly:       header[2],
		},
		Accounts:        accounts,
		RecentBlockhash: blockhash,
		Instructions:    instructions,
	}
	return nil
}

func writeCompact(b *bytes.Buffer, data []byte) {
	_, _ = shortvec.EncodeLen(b, len(data))
	b.Write(data)
}

type wireReader struct {
	*bytes.Reader
}

func (r wireReader) full(dst []byte) error {
	_, err := io.ReadFull(r, dst)
	return err
}

func (r wireReader) rest() []byte {
	remaining := make([]byte, r.Len())
	_, _ = r.Read(remaining)
	return remaining
}

// length reads a compact array length, rejecting lengths that can't fit in
// the remaining bytes given the minimum size of each element.
func (r wireReader) length(what string, elementSize int) (int, error) {
	n, err := shortvec.DecodeLen(r)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s count", what)
	}
	if n*elementSize > r.Len() {
		return 0, errors.Errorf("%s count %d exceeds remaining bytes", what, n)
	}
	return n, nil
}

func (r wireReader) compact(what string) ([]byte, error) {
	n, err := r.length(what, 1)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	return data, r.full(data)
}

func (r wireReader) instruction(accountCount int) (CompiledInstruction, error) {
	var c CompiledInstruction
	var err error

	if c.ProgramIndex, err = r.ReadByte(); err != nil {
		return c, err
	}
	if int(c.ProgramIndex) >= accountCount {
		return c, errors.Errorf("program index %d out of range", c.ProgramIndex)
	}

	if c.Accounts, err = r.compact("account index"); err != nil {
		return c, err
	}
	for _, index := range c.Accounts {
		if int(index) >= accountCount {
			return c, errors.Errorf("account index %d out of range", index)
		}
	}

	if c.Data, err = r.compact("data"); err != nil {
		return c, err
	}
	return c, nil
}
