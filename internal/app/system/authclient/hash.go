// internal/app/system/authclient/hash.go
package authclient

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashAlgorithm is the one-way transformation applied to a password before
// it leaves the server. It does not replace TLS to the backend.
type HashAlgorithm string

const (
	HashNone    HashAlgorithm = "none"
	HashSHA256  HashAlgorithm = "sha256"
	HashSHA3256 HashAlgorithm = "sha3-256"
)

// ParseHashAlgorithm accepts "none", "sha256" or "sha3-256" (case-insensitive).
// An empty string selects sha256.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch HashAlgorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", HashSHA256:
		return HashSHA256, nil
	case HashSHA3256:
		return HashSHA3256, nil
	case HashNone:
		return HashNone, nil
	}
	return "", fmt.Errorf("unknown password hash %q (want none, sha256 or sha3-256)", s)
}

// Apply returns the value transmitted in place of password, lower-case hex
// for the hashing algorithms.
func (a HashAlgorithm) Apply(password string) string {
	switch a {
	case HashNone:
		return password
	case HashSHA3256:
		sum := sha3.Sum256([]byte(password))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256([]byte(password))
		return hex.EncodeToString(sum[:])
	}
}
