package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// BlindIndex computes HMAC-SHA256(bk, name) as a hex string, letting a
// remote server deduplicate records by key name without ever seeing the
// plaintext name (SPEC_FULL.md glossary: Blind Index).
func BlindIndex(bk []byte, name string) string {
	mac := hmac.New(sha256.New, bk)
	mac.Write([]byte(name))
	return hex.EncodeToString(mac.Sum(nil))
}
