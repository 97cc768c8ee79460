package ledger

import (
	"github.com/code-payments/token-escrow/pkg/solana"
)

// Result is the outcome of a processed transaction. A processed transaction
// always pays its fee, even when an instruction fails.
type Result struct {
	Signature solana.Signature
	Slot      uint64
	Fee       uint64
	Logs      []string

	// Err is set when an instruction failed, in which case nothing but the fee
	// was committed.
	Err *solana.TransactionError
}

func (r *Result) Succeeded() bool {
	return r.Err == nil
}
