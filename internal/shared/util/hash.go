package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the hex-encoded SHA-256 of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first n hex characters of SHA256Hex(s). It makes
// provider-qualified IDs such as "google:123" safe for object keys.
func ShortHash(s string, n int) string {
	h := SHA256Hex(s)
	if n <= 0 || n > len(h) {
		return h
	}
	return h[:n]
}
