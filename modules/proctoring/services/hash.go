package services

import (
	"crypto/sha256"
	"encoding/hex"
)

// PageHash is the one-way proof of the canonical page URL shared between
// the access gate and the launch URLs handed to the vendor.
func PageHash(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}
