package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/token-escrow/pkg/solana"
)

// Authority proves the right to move funds out of, or spend on behalf of, an
// account.
type Authority interface {
	// Address is the account the authority speaks for
	Address() (ed25519.PublicKey, error)

	isAuthority()
}

// SignerAuthority is proven by a transaction signature from Signer.
type SignerAuthority struct {
	Signer ed25519.PublicKey
}

func (a SignerAuthority) Address() (ed25519.PublicKey, error) {
	return a.Signer, nil
}

func (SignerAuthority) isAuthority() {}

// ProgramAuthority is proven structurally: the address is the program derived
// address of Program and Seeds, and no private key for it exists. Only Program
// itself can present it.
type ProgramAuthority struct {
	Program ed25519.PublicKey
	Seeds   [][]byte
}

func (a ProgramAuthority) Address() (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(a.Program, a.Seeds...)
}

func (ProgramAuthority) isAuthority() {}
