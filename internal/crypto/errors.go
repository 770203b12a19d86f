// Package crypto implements Engram's envelope encryption, key derivation,
// recovery (BIP39 + Shamir), and RSA device-key wrapping.
package crypto

import "errors"

// Stable error kinds. Callers should compare with errors.Is.
var (
	ErrAuthFailed     = errors.New("auth error: gcm tag verification failed")
	ErrFormat         = errors.New("format error: malformed envelope")
	ErrVectorDim      = errors.New("vector dim mismatch")
	ErrRecovery       = errors.New("recovery error: insufficient or invalid shares")
	ErrNotInitialized = errors.New("not initialized: key material missing")
	ErrConfig         = errors.New("config error: missing or invalid configuration")
)
