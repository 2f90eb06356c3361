package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashLength is the length of a hex-encoded SHA-256 digest.
const HashLength = 64

// Sum returns the lowercase hex SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ContentHash computes the content-addressed identity of v: the SHA-256 of
// its canonical encoding. Used for log entry identity (logHash) and result
// identity (resultHash).
func ContentHash(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return Sum(data), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(v any) string {
	h, err := ContentHash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// IsHash reports whether s looks like a content hash: 64 lowercase hex digits.
func IsHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
