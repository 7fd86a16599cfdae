// Package sha256 content-addresses page snapshots.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements pricing.Hasher using SHA-256.
type Hasher struct {
	length int
}

// New returns a SHA-256 hasher producing full hex digests.
func New() *Hasher {
	return &Hasher{}
}

// NewTruncated returns a hasher whose digests keep only the first n hex characters.
// Values outside (0, 64) keep the full digest.
func NewTruncated(n int) *Hasher {
	return &Hasher{length: n}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if h.length > 0 && h.length < len(digest) {
		digest = digest[:h.length]
	}
	return digest, nil
}
