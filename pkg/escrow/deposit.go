package escrow

import (
	"bytes"
	"math"

	"github.com/mr-tron/base58"

	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

// Deposit locks args.Amount tokens from the sender in the receiver's vault until
// args.EndTime, recording the escrow in a new state account.
//
// Preconditions are checked in order: the sender signed, the vault addresses
// match their derivations, the amount is non-zero, the end time is in the
// future and the program accounts are canonical.
func Deposit(env *Environment, accounts *DepositAccounts, args *token_escrow.DepositInstructionArgs) error {
	if !accounts.Sender.IsSigner || !accounts.EscrowState.IsSigner {
		return token_escrow.ErrMissingRequiredSignature
	}

	vaultAuthority, _, err := token_escrow.GetVaultAuthorityAddress(&token_escrow.GetVaultAuthorityAddressArgs{
		Receiver: accounts.Receiver.PublicKey,
	})
	if err != nil {
		return token_escrow.ErrInvalidVaultAddress
	}
	if !bytes.Equal(vaultAuthority, accounts.VaultAuthority.PublicKey) {
		return token_escrow.ErrInvalidVaultAddress
	}

	vaultTokenAccount, err := token_escrow.GetVaultTokenAddress(&token_escrow.GetVaultTokenAddressArgs{
		VaultAuthority: vaultAuthority,
		Mint:           accounts.Mint.PublicKey,
	})
	if err != nil {
		return token_escrow.ErrInvalidVaultAddress
	}
	if !bytes.Equal(vaultTokenAccount, accounts.VaultTokenAccount.PublicKey) {
		return token_escrow.ErrInvalidVaultAddress
	}

	if args.Amount == 0 {
		return token_escrow.ErrInvalidAmount
	}

	if args.EndTime > math.MaxInt64 {
		return token_escrow.ErrInvalidEndTime
	}

	now := env.Clock.UnixTimestamp()
	if now >= args.EndTime {
		return token_escrow.ErrLockAlreadyMatured
	}

	if !accounts.hasCanonicalPrograms() {
		return token_escrow.ErrIncorrectProgramID
	}

	sender := SignerAuthority{Signer: accounts.Sender.PublicKey}

	if _, err := env.Token.CreateHoldingAccount(sender, vaultAuthority, accounts.Mint.PublicKey); err != nil {
		return err
	}

	if err := env.Token.Transfer(accounts.SenderTokenAccount.PublicKey, vaultTokenAccount, sender, args.Amount); err != nil {
		return err
	}

	err = env.Storage.CreateAccount(
		accounts.Sender.PublicKey,
		accounts.EscrowState.PublicKey,
		env.Storage.MinimumBalance(token_escrow.EscrowAccountSize),
		token_escrow.EscrowAccountSize,
		env.Program,
	)
	if err != nil {
		return err
	}

	state := &token_escrow.EscrowAccount{
		Amount:         args.Amount,
		StartTime:      now,
		EndTime:        args.EndTime,
		VaultAuthority: vaultAuthority,
		Sender:         accounts.Sender.PublicKey,
		Mint:           accounts.Mint.PublicKey,
		Receiver:       accounts.Receiver.PublicKey,
	}

	data, err := state.Marshal()
	if err != nil {
		return err
	}

	if err := env.Storage.WriteAccount(accounts.EscrowState.PublicKey, data); err != nil {
		return err
	}

	env.logf(
		"deposited %d into %s until %d",
		args.Amount,
		base58.Encode(accounts.EscrowState.PublicKey),
		args.EndTime,
	)
	return nil
}
