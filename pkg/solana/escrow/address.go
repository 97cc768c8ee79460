package token_escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/token-escrow/pkg/solana"
	"github.com/code-payments/token-escrow/pkg/solana/token"
)

type GetVaultAuthorityAddressArgs struct {
	Receiver ed25519.PublicKey
}

type GetVaultTokenAddressArgs struct {
	VaultAuthority ed25519.PublicKey
	Mint           ed25519.PublicKey
}

// GetVaultAuthorityAddress derives the keyless custody address for a receiver
// along with the bump needed to sign for it. The receiver is the only seed.
func GetVaultAuthorityAddress(args *GetVaultAuthorityAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		args.Receiver,
	)
}

// GetVaultTokenAddress returns the token account holding escrowed funds for the
// vault authority and mint.
func GetVaultTokenAddress(args *GetVaultTokenAddressArgs) (ed25519.PublicKey, error) {
	return token.GetAssociatedAccount(args.VaultAuthority, args.Mint)
}

// GetVaultAuthoritySignerSeeds returns the seeds that, together with the
// program id, recreate the vault authority address.
func GetVaultAuthoritySignerSeeds(receiver ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{
		receiver,
		{bump},
	}
}
