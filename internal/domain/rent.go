package domain

// Rent-exemption parameters of the host ledger's storage pricing model. An
// account must retain the reserve for its byte size to remain valid in the
// store; the contract never lets a withdrawal drain a campaign below it.
const (
	lamportsPerByteYear    = 3480
	exemptionYears         = 2
	accountStorageOverhead = 128
)

// MinimumReserve returns the smallest balance an account holding dataLen bytes
// must keep. Pure function of the byte size.
func MinimumReserve(dataLen int) uint64 {
	return uint64(dataLen+accountStorageOverhead) * lamportsPerByteYear * exemptionYears
}
