package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations matches SPEC_FULL.md §4.1: 600,000 rounds of PBKDF2-SHA256.
const PBKDF2Iterations = 600_000

// DeriveKeyFromPassword derives a 32-byte key from a password and salt for
// the headless unlock path (SPEC_FULL.md §10.1), an alternative to the
// OS-keychain-backed Master Key.
func DeriveKeyFromPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, 32, sha256.New)
}
