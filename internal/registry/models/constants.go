package models

import "time"

const (
	// MaxNameLen bounds names in bytes, not runes.
	MaxNameLen = 32
	// MaxMetadataLen bounds metadata in bytes.
	MaxMetadataLen = 280
	// OneYear is the validity granted by Register and Renew.
	OneYear = 31_536_000 * time.Second
	// ExpiringWindow marks a live name as expiring when it has less than this left.
	ExpiringWindow = 30 * 24 * time.Hour
)

// ConfigAccountSize is the serialized size of the config account:
// discriminator(8) + admin(32) + treasury(32) + price_per_char(8).
const ConfigAccountSize = 8 + 32 + 32 + 8

const (
	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionThresholdYrs  = 2
)

// RentExemptMinimum is the balance an account of dataLen bytes must hold to
// stay alive in the substrate.
func RentExemptMinimum(dataLen uint64) uint64 {
	return (accountStorageOverhead + dataLen) * lamportsPerByteYear * exemptionThresholdYrs
}

// DefaultMinimumReserve is the floor Withdraw leaves in custody.
func DefaultMinimumReserve() uint64 {
	return RentExemptMinimum(ConfigAccountSize)
}
