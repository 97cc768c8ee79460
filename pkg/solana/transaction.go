package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var (
	ErrSignatureFailure = errors.New("transaction signature verification failure")
	ErrMissingSignature = errors.New("transaction is missing a required signature")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into a legacy message with payer as
// the first signer.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	accounts := compileAccounts(payer, instructions)

	var m Message
	position := make(map[string]byte, len(accounts))
	for i, meta := range accounts {
		position[string(meta.PublicKey)] = byte(i)

		key := meta.PublicKey
		if len(key) == 0 {
			key = make(ed25519.PublicKey, ed25519.PublicKeySize)
		}
		m.Accounts = append(m.Accounts, key)

		switch {
		case meta.IsSigner && meta.IsWritable:
			m.Header.NumSignatures++
		case meta.IsSigner:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case !meta.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	m.Instructions = make([]CompiledInstruction, len(instructions))
	for i, ix := range instructions {
		compiled := &m.Instructions[i]
		compiled.ProgramIndex = position[string(ix.Program)]
		compiled.Data = ix.Data
		for _, meta := range ix.Accounts {
			compiled.Accounts = append(compiled.Accounts, position[string(meta.PublicKey)])
		}
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// Signature returns the first (fee payer) signature, which identifies the
// transaction.
func (t *Transaction) Signature() []byte {
	if len(t.Signatures) == 0 {
		return nil
	}
	return t.Signatures[0][:]
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each of signers, which must all be required
// signers of the message.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, signer := range signers {
		pub := signer.Public().(ed25519.PublicKey)

		switch index := indexOf(t.Message.Accounts, pub); {
		case index < 0:
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		case index >= len(t.Signatures):
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		default:
			copy(t.Signatures[index][:], ed25519.Sign(signer, message))
		}
	}
	return nil
}

// VerifySignatures checks that every required signer provided a valid signature
// over the message.
func (t *Transaction) VerifySignatures() error {
	if len(t.Signatures) != int(t.Message.Header.NumSignatures) {
		return errors.Wrapf(ErrMissingSignature, "expected %d signatures, got %d", t.Message.Header.NumSignatures, len(t.Signatures))
	}
	if len(t.Message.Accounts) < len(t.Signatures) {
		return errors.Wrap(ErrSignatureFailure, "more signatures than accounts")
	}

	var empty Signature
	messageBytes := t.Message.Marshal()
	for i, sig := range t.Signatures {
		if sig == empty {
			return errors.Wrapf(ErrMissingSignature, "signer %s", base58.Encode(t.Message.Accounts[i]))
		}
		if !ed25519.Verify(t.Message.Accounts[i], messageBytes, sig[:]) {
			return errors.Wrapf(ErrSignatureFailure, "signer %s", base58.Encode(t.Message.Accounts[i]))
		}
	}
	return nil
}

// IsSigner reports whether the account at index signed the message.
func (m *Message) IsSigner(index int) bool {
	return index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the account at index was declared writable.
func (m *Message) IsWritable(index int) bool {
	if index < int(m.Header.NumSignatures) {
		return index < int(m.Header.NumSignatures-m.Header.NumReadonlySigned)
	}
	return index < len(m.Accounts)-int(m.Header.NumReadOnly)
}

// DecompileInstruction expands the compiled instruction at index back into an
// Instruction, carrying the message level signer and writable privileges of
// each account.
func (m *Message) DecompileInstruction(index int) (Instruction, error) {
	if index < 0 || index >= len(m.Instructions) {
		return Instruction{}, errors.Errorf("instruction doesn't exist at %d", index)
	}

	c := m.Instructions[index]
	if int(c.ProgramIndex) >= len(m.Accounts) {
		return Instruction{}, errors.Errorf("program index %d out of range", c.ProgramIndex)
	}

	accounts := make([]AccountMeta, len(c.Accounts))
	for i, accountIndex := range c.Accounts {
		if int(accountIndex) >= len(m.Accounts) {
			return Instruction{}, errors.Errorf("account index %d out of range", accountIndex)
		}

		accounts[i] = AccountMeta{
			PublicKey:  m.Accounts[accountIndex],
			IsSigner:   m.IsSigner(int(accountIndex)),
			IsWritable: m.IsWritable(int(accountIndex)),
		}
	}

	return NewInstruction(m.Accounts[c.ProgramIndex], c.Data, accounts...), nil
}

// Sanitize checks the internal consistency of the message header and indexes.
func (m *Message) Sanitize() error {
	if m.Header.NumSignatures == 0 {
		return errors.New("message has no signers")
	}
	if int(m.Header.NumSignatures)+int(m.Header.NumReadOnly) > len(m.Accounts) {
		return errors.New("header exceeds account count")
	}
	if m.Header.NumReadonlySigned >= m.Header.NumSignatures {
		return errors.New("fee payer must be writable")
	}

	for i := range m.Accounts {
		if len(m.Accounts[i]) != ed25519.PublicKeySize {
			return errors.Errorf("invalid account key at %d", i)
		}
		for j := i + 1; j < len(m.Accounts); j++ {
			if bytes.Equal(m.Accounts[i], m.Accounts[j]) {
				return errors.Errorf("account %s loaded twice", base58.Encode(m.Accounts[i]))
			}
		}
	}

	for i, instruction := range m.Instructions {
		if int(instruction.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("program index out of range: %d:%d", i, instruction.ProgramIndex)
		}
		if instruction.ProgramIndex == 0 {
			return errors.Errorf("instruction %d invokes the fee payer", i)
		}
		for _, index := range instruction.Accounts {
			if int(index) >= len(m.Accounts) {
				return errors.Errorf("account index out of range: %d:%d", i, index)
			}
		}
	}
	return nil
}

func (t *Transaction) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "signatures=%d header=%d/%d/%d blockhash=%s\n",
		len(t.Signatures),
		t.Message.Header.NumSignatures,
		t.Message.Header.NumReadonlySigned,
		t.Message.Header.NumReadOnly,
		t.Message.RecentBlockhash,
	)
	for i, signature := range t.Signatures {
		fmt.Fprintf(&sb, "  signature[%d] %s\n", i, signature)
	}
	for i, account := range t.Message.Accounts {
		fmt.Fprintf(&sb, "  account[%d] %s signer=%t writable=%t\n", i, base58.Encode(account), t.Message.IsSigner(i), t.Message.IsWritable(i))
	}
	for i, instruction := range t.Message.Instructions {
		fmt.Fprintf(&sb, "  instruction[%d] program=%d accounts=%v data=%x\n", i, instruction.ProgramIndex, instruction.Accounts, instruction.Data)
	}

	return sb.String()
}

// compileAccounts returns every account referenced by the instructions once,
// with the permissions of all its references merged, in message order.
func compileAccounts(payer ed25519.PublicKey, instructions []Instruction) []AccountMeta {
	unique := linkedhashmap.New()
	add := func(meta AccountMeta) {
		if existing, ok := unique.Get(string(meta.PublicKey)); ok {
			merged := existing.(AccountMeta)
			merged.IsSigner = merged.IsSigner || meta.IsSigner
			merged.IsWritable = merged.IsWritable || meta.IsWritable
			merged.isPayer = merged.isPayer || meta.isPayer
			meta = merged
		}
		unique.Put(string(meta.PublicKey), meta)
	}

	add(AccountMeta{PublicKey: payer, IsSigner: true, IsWritable: true, isPayer: true})
	for _, ix := range instructions {
		add(AccountMeta{PublicKey: ix.Program, isProgram: true})
		for _, meta := range ix.Accounts {
			add(meta)
		}
	}

	accounts := make([]AccountMeta, 0, unique.Size())
	for _, v := range unique.Values() {
		accounts = append(accounts, v.(AccountMeta))
	}

	sort.Slice(accounts, func(i, j int) bool {
		ri, rj := accountRank(accounts[i]), accountRank(accounts[j])
		if ri != rj {
			return ri < rj
		}
		return bytes.Compare(accounts[i].PublicKey, accounts[j].PublicKey) < 0
	})
	return accounts
}

// accountRank orders the payer first, then other accounts ahead of programs,
// signers ahead of non-signers and writable accounts ahead of readonly ones.
func accountRank(meta AccountMeta) int {
	var rank int
	if !meta.isPayer {
		rank |= 8
	}
	if meta.isProgram {
		rank |= 4
	}
	if !meta.IsSigner {
		rank |= 2
	}
	if !meta.IsWritable {
		rank |= 1
	}
	return rank
}

func indexOf(keys []ed25519.PublicKey, key ed25519.PublicKey) int {
	for i := range keys {
		if bytes.Equal(keys[i], key) {
			return i
		}
	}
	return -1
}
