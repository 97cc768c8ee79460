package common

import (
	"bytes"
	"crypto/ed25519"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"

	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

// Account is a ledger address, optionally along with the private key that
// signs for it.
type Account struct {
	publicKey  *Key
	privateKey *Key
}

// EscrowVaultAccounts are the program derived accounts that custody escrowed
// funds on behalf of a receiver.
type EscrowVaultAccounts struct {
	Receiver *Account

	Authority     *Account
	AuthorityBump uint8

	TokenAccount *Account

	Mint *Account
}

func NewAccountFromPublicKeyBytes(publicKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(publicKey)
	if err != nil {
		return nil, err
	}
	return newValidatedAccount(&Account{publicKey: key})
}

func NewAccountFromPublicKeyString(publicKey string) (*Account, error) {
	key, err := NewKeyFromString(publicKey)
	if err != nil {
		return nil, err
	}
	return newValidatedAccount(&Account{publicKey: key})
}

func NewAccountFromPrivateKeyBytes(privateKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(privateKey)
	if err != nil {
		return nil, err
	}
	return newAccountFromPrivateKey(key)
}

func NewAccountFromPrivateKeyString(privateKey string) (*Account, error) {
	key, err := NewKeyFromString(privateKey)
	if err != nil {
		return nil, err
	}
	return newAccountFromPrivateKey(key)
}

func NewRandomAccount() (*Account, error) {
	key, err := NewRandomKey()
	if err != nil {
		return nil, err
	}
	return newAccountFromPrivateKey(key)
}

func newAccountFromPrivateKey(privateKey *Key) (*Account, error) {
	if privateKey.IsPublic() {
		return nil, errors.New("key isn't private")
	}

	publicKey, err := NewKeyFromBytes(ed25519.PrivateKey(privateKey.ToBytes()).Public().(ed25519.PublicKey))
	if err != nil {
		return nil, errors.Wrap(err, "error creating public key from private key")
	}

	return newValidatedAccount(&Account{
		publicKey:  publicKey,
		privateKey: privateKey,
	})
}

func newValidatedAccount(account *Account) (*Account, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func (a *Account) PublicKey() *Key {
	return a.publicKey
}

// PrivateKey returns nil for accounts that can't sign.
func (a *Account) PrivateKey() *Key {
	return a.privateKey
}

// ToSigner returns the ed25519 private key for signing transactions.
func (a *Account) ToSigner() (ed25519.PrivateKey, error) {
	if a.privateKey == nil {
		return nil, errors.New("private key not available")
	}
	return a.privateKey.ToBytes(), nil
}

// GetEscrowVaultAccounts derives the vault custodying escrowed funds of mint
// for the account as a receiver.
func (a *Account) GetEscrowVaultAccounts(mint *Account) (*EscrowVaultAccounts, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, "error validating receiver account")
	}

	authorityAddress, authorityBump, err := token_escrow.GetVaultAuthorityAddress(&token_escrow.GetVaultAuthorityAddressArgs{
		Receiver: a.PublicKey().ToBytes(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error getting vault authority address")
	}

	tokenAddress, err := token_escrow.GetVaultTokenAddress(&token_escrow.GetVaultTokenAddressArgs{
		VaultAuthority: authorityAddress,
		Mint:           mint.PublicKey().ToBytes(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error getting vault token address")
	}

	authorityAccount, err := NewAccountFromPublicKeyBytes(authorityAddress)
	if err != nil {
		return nil, err
	}

	tokenAccount, err := NewAccountFromPublicKeyBytes(tokenAddress)
	if err != nil {
		return nil, err
	}

	return &EscrowVaultAccounts{
		Receiver: a,

		Authority:     authorityAccount,
		AuthorityBump: authorityBump,

		TokenAccount: tokenAccount,

		Mint: mint,
	}, nil
}

// GetDepositInstruction builds a deposit of amount tokens from sender into the
// vault, recorded at the fresh escrowState account.
func (v *EscrowVaultAccounts) GetDepositInstruction(sender, escrowState *Account, amount, endTime uint64) (solana.Instruction, error) {
	accounts, err := token_escrow.GetDepositInstructionAccounts(
		sender.PublicKey().ToBytes(),
		escrowState.PublicKey().ToBytes(),
		v.Receiver.PublicKey().ToBytes(),
		v.Mint.PublicKey().ToBytes(),
	)
	if err != nil {
		return solana.Instruction{}, err
	}

	return token_escrow.NewDepositInstruction(
		accounts,
		&token_escrow.DepositInstructionArgs{
			Amount:  amount,
			EndTime: endTime,
		},
	), nil
}

// GetUnlockInstruction builds an unlock of the escrow recorded at escrowState.
func (v *EscrowVaultAccounts) GetUnlockInstruction(sender, escrowState *Account, nonce uint64) (solana.Instruction, error) {
	accounts, err := token_escrow.GetUnlockInstructionAccounts(
		escrowState.PublicKey().ToBytes(),
		sender.PublicKey().ToBytes(),
		v.Receiver.PublicKey().ToBytes(),
		v.Mint.PublicKey().ToBytes(),
	)
	if err != nil {
		return solana.Instruction{}, err
	}

	return token_escrow.NewUnlockInstruction(
		accounts,
		&token_escrow.UnlockInstructionArgs{
			Nonce: nonce,
		},
	), nil
}

// IsOnCurve is false for program derived addresses, which have no private key.
func (a *Account) IsOnCurve() bool {
	return isOnCurve(a.PublicKey().ToBytes())
}

func (a *Account) Validate() error {
	if a == nil {
		return errors.New("account is nil")
	}

	if err := a.publicKey.Validate(); err != nil {
		return errors.Wrap(err, "error validating public key")
	}
	if !a.publicKey.IsPublic() {
		return errors.New("public key isn't public")
	}

	if a.privateKey == nil {
		return nil
	}

	if err := a.privateKey.Validate(); err != nil {
		return errors.Wrap(err, "error validating private key")
	}
	if a.privateKey.IsPublic() {
		return errors.New("private key isn't private")
	}

	derived := ed25519.PrivateKey(a.privateKey.ToBytes()).Public().(ed25519.PublicKey)
	if !bytes.Equal(a.publicKey.ToBytes(), derived) {
		return errors.New("private key doesn't map to public key")
	}
	return nil
}

func (a *Account) String() string {
	return a.PublicKey().ToBase58()
}

func isOnCurve(key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(key)
	return err == nil
}
