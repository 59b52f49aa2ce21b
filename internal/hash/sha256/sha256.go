// Package sha256 provides the hex SHA-256 digests used for review identity.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the lowercase hex SHA-256 digest of s.
func Sum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Join hashes parts joined with "|".
func Join(parts ...string) string {
	return Sum(strings.Join(parts, "|"))
}
