package system

// Default rent parameters.
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs
const (
	AccountStorageOverhead      = 128
	DefaultLamportsPerByteYear  = 3480
	DefaultExemptionThresholdYr = 2
)

// MinimumBalance returns the lamports an account holding size bytes of data
// must carry to be rent exempt.
func MinimumBalance(size uint64) uint64 {
	return (AccountStorageOverhead + size) * DefaultLamportsPerByteYear * DefaultExemptionThresholdYr
}
