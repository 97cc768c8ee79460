package ledger

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/token-escrow/pkg/ledger/account"
	"github.com/code-payments/token-escrow/pkg/solana"
)

// Program is an on-ledger program. Process is invoked for each instruction
// addressed to ID, with a context scoped to that instruction's accounts.
type Program interface {
	ID() ed25519.PublicKey
	Process(ic *InvokeContext, ix solana.Instruction) error
}

// Observer is notified after each commit with every account the commit
// modified. It is called synchronously, so implementations should hand off
// slow work.
type Observer interface {
	OnAccountsCommitted(ctx context.Context, slot uint64, records []*account.Record)
}
