// Package native contains the builtin programs every ledger runs.
package native

import (
	"github.com/code-payments/token-escrow/pkg/ledger"
)

// Programs returns the builtin programs, for use with ledger.WithPrograms.
func Programs() []ledger.Program {
	return []ledger.Program{
		SystemProgram{},
		TokenProgram{},
		AssociatedTokenAccountProgram{},
	}
}
