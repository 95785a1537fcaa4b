package cas

import (
	"encoding/hex"
	"regexp"

	"github.com/zeebo/blake3"
)

// ShortIDLen is the number of hex characters in a short identifier.
const ShortIDLen = 8

// hashPattern matches a lowercase BLAKE3-256 hex digest.
var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Hash returns the hex BLAKE3-256 digest of data.
func Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashString is Hash for string input.
func HashString(s string) string {
	return Hash([]byte(s))
}

// ShortID returns the first ShortIDLen hex characters of the digest of key.
// Record names use it to keep files with the same base name apart.
func ShortID(key string) string {
	return HashString(key)[:ShortIDLen]
}

// Verify reports whether data hashes to hash.
func Verify(data []byte, hash string) bool {
	return Hash(data) == hash
}

func isValidHash(hash string) bool {
	return hashPattern.MatchString(hash)
}
