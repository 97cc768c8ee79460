package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
)

// SystemAccount is the address of the system program.
var SystemAccount = mustDecode("11111111111111111111111111111111")

// RentSysVar is the address of the Rent sysvar, which instructions creating
// accounts list for rent exemption checks.
var RentSysVar = mustDecode("SysvarRent111111111111111111111111111111111")

func mustDecode(address string) ed25519.PublicKey {
	raw, err := base58.Decode(address)
	if err != nil {
		panic(err)
	}
	return raw
}
