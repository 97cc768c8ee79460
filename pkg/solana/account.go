package solana

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var (
	ErrNoAccountInfo = errors.New("no account info")
)

// AccountInfo contains the account information (not to be confused with a TokenAccount)
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// AccountReader provides read access to account state.
type AccountReader interface {
	// GetAccountInfo returns the current state of the account, or ErrNoAccountInfo
	// if it does not exist.
	GetAccountInfo(ctx context.Context, account ed25519.PublicKey) (AccountInfo, error)
}
