package token

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/solana"
)

var (
	// ErrAccountNotFound indicates there is no account for the given address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidTokenAccount indicates that an account exists at the given
	// address, but it is either not initialized, or not configured correctly.
	ErrInvalidTokenAccount = errors.New("invalid token account")
)

// Client provides utilities for accessing token accounts for a given mint.
type Client struct {
	reader solana.AccountReader
	mint   ed25519.PublicKey
}

// NewClient creates a new Client.
func NewClient(reader solana.AccountReader, mint ed25519.PublicKey) *Client {
	return &Client{
		reader: reader,
		mint:   mint,
	}
}

func (c *Client) Mint() ed25519.PublicKey {
	return c.mint
}

// GetAccount returns the token account info for the specified account.
//
// If the account is not initialized, or belongs to a different
// mint, then ErrInvalidTokenAccount is returned.
func (c *Client) GetAccount(ctx context.Context, accountID ed25519.PublicKey) (*Account, error) {
	accountInfo, err := c.reader.GetAccountInfo(ctx, accountID)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(accountInfo.Owner, ProgramKey) {
		return nil, ErrInvalidTokenAccount
	}

	var account Account
	if !account.Unmarshal(accountInfo.Data) {
		return nil, ErrInvalidTokenAccount
	}

	if account.State == AccountStateUninitialized || !bytes.Equal(c.mint, account.Mint) {
		return nil, ErrInvalidTokenAccount
	}

	return &account, nil
}

// GetAssociatedAccount returns the token account associated with wallet for
// the client's mint.
func (c *Client) GetAssociatedAccount(ctx context.Context, wallet ed25519.PublicKey) (ed25519.PublicKey, *Account, error) {
	address, err := GetAssociatedAccount(wallet, c.mint)
	if err != nil {
		return nil, nil, err
	}

	account, err := c.GetAccount(ctx, address)
	if err != nil {
		return address, nil, err
	}
	return address, account, nil
}
