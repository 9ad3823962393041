// Package checksum provides content hashing for cache-busting asset names.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first 8 hex characters of Sum, enough to bust caches
// when an asset's content changes.
func Short(data []byte) string {
	return Sum(data)[:8]
}
