package escrow

import (
	"bytes"

	"github.com/mr-tron/base58"

	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

// Unlock releases a matured escrow's full amount to the receiver's token
// account. Unlocking an escrow that was already released succeeds without
// effect.
func Unlock(env *Environment, accounts *UnlockAccounts, args *token_escrow.UnlockInstructionArgs) error {
	info, err := env.Storage.GetAccountInfo(accounts.EscrowState.PublicKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(info.Owner, env.Program) {
		return token_escrow.ErrIllegalOwner
	}

	var state token_escrow.EscrowAccount
	if err := state.Unmarshal(info.Data); err != nil {
		return token_escrow.ErrInvalidEscrowState
	}

	if !bytes.Equal(state.Sender, accounts.Sender.PublicKey) ||
		!bytes.Equal(state.VaultAuthority, accounts.VaultAuthority.PublicKey) ||
		!bytes.Equal(state.Mint, accounts.Mint.PublicKey) ||
		!bytes.Equal(state.Receiver, accounts.Receiver.PublicKey) {
		return token_escrow.ErrEscrowMismatch
	}

	vaultAuthority, bump, err := token_escrow.GetVaultAuthorityAddress(&token_escrow.GetVaultAuthorityAddressArgs{
		Receiver: accounts.Receiver.PublicKey,
	})
	if err != nil || !bytes.Equal(vaultAuthority, accounts.VaultAuthority.PublicKey) {
		return token_escrow.ErrInvalidVaultAddress
	}

	vaultTokenAccount, err := token_escrow.GetVaultTokenAddress(&token_escrow.GetVaultTokenAddressArgs{
		VaultAuthority: vaultAuthority,
		Mint:           accounts.Mint.PublicKey,
	})
	if err != nil || !bytes.Equal(vaultTokenAccount, accounts.VaultTokenAccount.PublicKey) {
		return token_escrow.ErrInvalidVaultAddress
	}

	receiverTokenAccount, err := token.GetAssociatedAccount(accounts.Receiver.PublicKey, accounts.Mint.PublicKey)
	if err != nil || !bytes.Equal(receiverTokenAccount, accounts.ReceiverTokenAccount.PublicKey) {
		return token_escrow.ErrInvalidVaultAddress
	}

	if !accounts.hasCanonicalPrograms() {
		return token_escrow.ErrIncorrectProgramID
	}

	if state.IsReleased() {
		env.logf("escrow %s already released", base58.Encode(accounts.EscrowState.PublicKey))
		return nil
	}

	if !state.IsMatured(env.Clock.UnixTimestamp()) {
		return token_escrow.ErrLockNotMatured
	}

	vault := ProgramAuthority{
		Program: env.Program,
		Seeds:   token_escrow.GetVaultAuthoritySignerSeeds(accounts.Receiver.PublicKey, bump),
	}

	if _, err := env.Token.CreateHoldingAccount(vault, accounts.Receiver.PublicKey, accounts.Mint.PublicKey); err != nil {
		return err
	}

	amount := state.Amount
	if err := env.Token.Transfer(vaultTokenAccount, receiverTokenAccount, vault, amount); err != nil {
		return err
	}

	state.Amount = 0

	data, err := state.Marshal()
	if err != nil {
		return err
	}

	if err := env.Storage.WriteAccount(accounts.EscrowState.PublicKey, data); err != nil {
		return err
	}

	env.logf(
		"released %d from %s to %s (nonce %d)",
		amount,
		base58.Encode(accounts.EscrowState.PublicKey),
		base58.Encode(receiverTokenAccount),
		args.Nonce,
	)
	return nil
}
