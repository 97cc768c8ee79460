package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newRandomTestAccount lives here since pkg/testutil depends on this package.
func newRandomTestAccount(t *testing.T) *Account {
	account, err := NewRandomAccount()
	require.NoError(t, err)
	return account
}
