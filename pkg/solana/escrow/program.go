package token_escrow

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("EscrowLockMASi45ub7Qe4ZE36UT5G6cU4ud8Fhhe4de")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
