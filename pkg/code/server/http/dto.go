package http_server

import (
	"encoding/base64"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/solana"
)

type errorResponse struct {
	Error string `json:"error"`
}

type escrowResponse struct {
	Address string `json:"address"`

	VaultAuthority     string `json:"vault_authority"`
	VaultAuthorityBump uint8  `json:"vault_authority_bump"`
	VaultTokenAccount  string `json:"vault_token_account"`

	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Mint     string `json:"mint"`

	Amount          uint64 `json:"amount"`
	DepositedAmount uint64 `json:"deposited_amount"`

	StartTime uint64 `json:"start_time"`
	EndTime   uint64 `json:"end_time"`

	State string `json:"state"`
	Slot  uint64 `json:"slot"`
}

type getEscrowResponse struct {
	Escrow *escrowResponse `json:"escrow"`
	Now    uint64          `json:"now"`
}

type listEscrowsResponse struct {
	Escrows    []*escrowResponse `json:"escrows"`
	NextCursor string            `json:"next_cursor,omitempty"`
	Now        uint64            `json:"now"`
}

type vaultResponse struct {
	Receiver           string `json:"receiver"`
	Mint               string `json:"mint"`
	VaultAuthority     string `json:"vault_authority"`
	VaultAuthorityBump uint8  `json:"vault_authority_bump"`
	VaultTokenAccount  string `json:"vault_token_account"`
}

type depositInstructionRequest struct {
	Sender      string `json:"sender" binding:"required"`
	EscrowState string `json:"escrow_state" binding:"required"`
	Receiver    string `json:"receiver" binding:"required"`
	Mint        string `json:"mint" binding:"required"`
	Amount      uint64 `json:"amount" binding:"required"`
	EndTime     uint64 `json:"end_time" binding:"required"`
}

// Accounts left empty are filled in from the indexed escrow.
type unlockInstructionRequest struct {
	EscrowState string  `json:"escrow_state" binding:"required"`
	Sender      string  `json:"sender"`
	Receiver    string  `json:"receiver"`
	Mint        string  `json:"mint"`
	Nonce       *uint64 `json:"nonce"`
}

type accountMetaResponse struct {
	PublicKey  string `json:"public_key"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

type instructionResponse struct {
	ProgramId string                 `json:"program_id"`
	Accounts  []*accountMetaResponse `json:"accounts"`
	Data      string                 `json:"data"`
}

func toEscrowResponse(record *escrow.Record, now uint64) *escrowResponse {
	return &escrowResponse{
		Address: record.Address,

		VaultAuthority:     record.VaultAuthority,
		VaultAuthorityBump: record.VaultAuthorityBump,
		VaultTokenAccount:  record.VaultTokenAccount,

		Sender:   record.Sender,
		Receiver: record.Receiver,
		Mint:     record.Mint,

		Amount:          record.Amount,
		DepositedAmount: record.DepositedAmount,

		StartTime: record.StartTime,
		EndTime:   record.EndTime,

		State: record.StateAt(now).String(),
		Slot:  record.Slot,
	}
}

func toInstructionResponse(ix solana.Instruction) *instructionResponse {
	accounts := make([]*accountMetaResponse, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		accounts[i] = &accountMetaResponse{
			PublicKey:  base58.Encode(meta.PublicKey),
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
	}

	return &instructionResponse{
		ProgramId: base58.Encode(ix.Program),
		Accounts:  accounts,
		Data:      base64.StdEncoding.EncodeToString(ix.Data),
	}
}

type blockhashResponse struct {
	Blockhash string `json:"blockhash"`
}

type submitTransactionRequest struct {
	// Transaction is the base64 encoded wire transaction
	Transaction string `json:"transaction" binding:"required"`
}

type transactionResponse struct {
	Signature string   `json:"signature"`
	Slot      uint64   `json:"slot,omitempty"`
	Fee       uint64   `json:"fee,omitempty"`
	Logs      []string `json:"logs,omitempty"`

	// Error is set in the RPC error format when the transaction was rejected
	// or an instruction failed. ErrorKind further classifies escrow program
	// errors.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}
