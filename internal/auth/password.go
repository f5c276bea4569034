package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for password hashing. N=32768 keeps derivation
// memory-hard while staying well under a second per login.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64

	saltBytes = 16
)

// NewSalt returns a fresh per-user salt, hex-encoded.
func NewSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword derives a hex-encoded scrypt hash of the password
// under the given salt.
func HashPassword(password, salt string) (string, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// VerifyPassword reports whether the password hashes to expectedHex
// under the given salt. The comparison is constant-time. Malformed
// stored hashes fail closed.
func VerifyPassword(password, salt, expectedHex string) bool {
	expected, err := hex.DecodeString(expectedHex)
	if err != nil {
		return false
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}
	if len(expected) != len(key) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, key) == 1
}
