package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Keyer generates cache keys.
type Keyer interface {
	// ResolutionKey returns the key under which the resolution of a raw
	// identifier is stored.
	ResolutionKey(raw string) string
}

// DefaultKeyer generates unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ResolutionKey hashes the raw identifier so arbitrary build output can never
// produce an unsafe key.
func (DefaultKeyer) ResolutionKey(raw string) string {
	return fmt.Sprintf("resolve:%s", Hash([]byte(raw)))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
