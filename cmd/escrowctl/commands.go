package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"io"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/code/common"
	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

type command struct {
	usage string
	run   func(args []string, out io.Writer) error
}

var commands = map[string]command{
	"derive": {
		usage: "derive -receiver <address> -mint <address>",
		run:   derive,
	},
	"encode-deposit": {
		usage: "encode-deposit -sender <address> -state <address> -receiver <address> -mint <address> -amount <n> -end-time <unix>",
		run:   encodeDeposit,
	},
	"encode-unlock": {
		usage: "encode-unlock -sender <address> -state <address> -receiver <address> -mint <address> [-nonce <n>]",
		run:   encodeUnlock,
	},
	"decode": {
		usage: "decode -data <base64>",
		run:   decode,
	},
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage())
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return errors.Errorf("unknown command %q\n%s", args[0], usage())
	}
	return cmd.run(args[1:], out)
}

func usage() string {
	var lines []string
	for _, cmd := range commands {
		lines = append(lines, "  escrowctl "+cmd.usage)
	}
	sort.Strings(lines)
	return "usage:\n" + strings.Join(lines, "\n")
}

type vaultOutput struct {
	VaultAuthority     string `json:"vault_authority"`
	VaultAuthorityBump uint8  `json:"vault_authority_bump"`
	VaultTokenAccount  string `json:"vault_token_account"`
}

type accountMetaOutput struct {
	PublicKey  string `json:"public_key"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

type instructionOutput struct {
	ProgramId string               `json:"program_id"`
	Accounts  []*accountMetaOutput `json:"accounts"`
	Data      string               `json:"data"`
}

type decodedOutput struct {
	Type    string  `json:"type"`
	Amount  *uint64 `json:"amount,omitempty"`
	EndTime *uint64 `json:"end_time,omitempty"`
	Nonce   *uint64 `json:"nonce,omitempty"`
}

func derive(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	receiver := fs.String("receiver", "", "receiver address")
	mint := fs.String("mint", "", "mint address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	vault, err := vaultAccounts(*receiver, *mint)
	if err != nil {
		return err
	}

	return writeJSON(out, &vaultOutput{
		VaultAuthority:     vault.Authority.String(),
		VaultAuthorityBump: vault.AuthorityBump,
		VaultTokenAccount:  vault.TokenAccount.String(),
	})
}

func encodeDeposit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode-deposit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sender := fs.String("sender", "", "sender address")
	state := fs.String("state", "", "fresh escrow state address")
	receiver := fs.String("receiver", "", "receiver address")
	mint := fs.String("mint", "", "mint address")
	amount := fs.Uint64("amount", 0, "amount to lock")
	endTime := fs.Uint64("end-time", 0, "unix timestamp the funds unlock at")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *amount == 0 {
		return errors.New("amount must be positive")
	}
	if *endTime == 0 {
		return errors.New("end-time is required")
	}

	vault, err := vaultAccounts(*receiver, *mint)
	if err != nil {
		return err
	}

	senderAccount, stateAccount, err := senderAndState(*sender, *state)
	if err != nil {
		return err
	}

	ix, err := vault.GetDepositInstruction(senderAccount, stateAccount, *amount, *endTime)
	if err != nil {
		return err
	}
	return writeJSON(out, toInstructionOutput(ix))
}

func encodeUnlock(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode-unlock", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sender := fs.String("sender", "", "sender address")
	state := fs.String("state", "", "escrow state address")
	receiver := fs.String("receiver", "", "receiver address")
	mint := fs.String("mint", "", "mint address")
	value := fs.Uint64("nonce", 0, "nonce, random when zero")
	if err := fs.Parse(args); err != nil {
		return err
	}

	vault, err := vaultAccounts(*receiver, *mint)
	if err != nil {
		return err
	}

	senderAccount, stateAccount, err := senderAndState(*sender, *state)
	if err != nil {
		return err
	}

	if *value == 0 {
		*value = nonce.New()
	}

	ix, err := vault.GetUnlockInstruction(senderAccount, stateAccount, *value)
	if err != nil {
		return err
	}
	return writeJSON(out, toInstructionOutput(ix))
}

func decode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	data := fs.String("data", "", "base64 instruction data")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(*data)
	if err != nil {
		return errors.Wrap(err, "invalid base64 data")
	}

	ix, err := token_escrow.DecodeInstruction(raw)
	if err != nil {
		return err
	}

	res := &decodedOutput{Type: ix.Type.String()}
	switch ix.Type {
	case token_escrow.InstructionTypeDeposit:
		res.Amount = &ix.Deposit.Amount
		res.EndTime = &ix.Deposit.EndTime
	case token_escrow.InstructionTypeUnlock:
		res.Nonce = &ix.Unlock.Nonce
	}
	return writeJSON(out, res)
}

func vaultAccounts(receiver, mint string) (*common.EscrowVaultAccounts, error) {
	receiverAccount, err := common.NewAccountFromPublicKeyString(receiver)
	if err != nil {
		return nil, errors.Wrap(err, "invalid receiver")
	}

	mintAccount, err := common.NewAccountFromPublicKeyString(mint)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mint")
	}

	return receiverAccount.GetEscrowVaultAccounts(mintAccount)
}

func senderAndState(sender, state string) (*common.Account, *common.Account, error) {
	senderAccount, err := common.NewAccountFromPublicKeyString(sender)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid sender")
	}

	stateAccount, err := common.NewAccountFromPublicKeyString(state)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid state")
	}

	return senderAccount, stateAccount, nil
}

func toInstructionOutput(ix solana.Instruction) *instructionOutput {
	accounts := make([]*accountMetaOutput, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		accounts[i] = &accountMetaOutput{
			PublicKey:  base58.Encode(meta.PublicKey),
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
	}

	return &instructionOutput{
		ProgramId: base58.Encode(ix.Program),
		Accounts:  accounts,
		Data:      base64.StdEncoding.EncodeToString(ix.Data),
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
