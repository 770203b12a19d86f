// Package recovery implements recovery-kit generation/combination and
// device key-pair lifecycle (SPEC_FULL.md §4.1, §4.9, §10.2), built on
// internal/crypto's Shamir and RSA primitives. Grounded on the teacher's
// internal/pairing/service.go JSON-file-backed Store shape for local
// approval-flow state, adapted here from a code-alphabet pairing code to
// a Shamir share set.
package recovery

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/engramhq/engram/internal/crypto"
)

// Kit is a generated recovery kit: the vault key split into Shamir shares
// plus the parameters needed to recombine them.
type Kit struct {
	Shares    []crypto.Share
	Total     int
	Threshold int
}

// GenerateRecoveryKit splits vaultKey into total shares requiring
// threshold of them to recombine.
func GenerateRecoveryKit(vaultKey []byte, total, threshold int) (Kit, error) {
	if threshold < 2 {
		return Kit{}, fmt.Errorf("recovery: %w: threshold must be at least 2", crypto.ErrRecovery)
	}
	shares, err := crypto.SplitSecret(vaultKey, total, threshold)
	if err != nil {
		return Kit{}, fmt.Errorf("recovery: split secret: %w", err)
	}
	return Kit{Shares: shares, Total: total, Threshold: threshold}, nil
}

// RecoverFromKit recombines a subset of shares (at least the kit's
// threshold) back into the vault key.
func RecoverFromKit(shares []crypto.Share) ([]byte, error) {
	vaultKey, err := crypto.CombineShares(shares)
	if err != nil {
		return nil, fmt.Errorf("recovery: %w: combine shares: %v", crypto.ErrRecovery, err)
	}
	return vaultKey, nil
}

// DeviceKeyPair is a freshly generated device identity, not yet
// registered with any vault.
type DeviceKeyPair struct {
	ID         string
	PrivateKey *rsa.PrivateKey
	PublicPEM  string
}

// GenerateDeviceIdentity creates a new RSA-4096 device key pair.
func GenerateDeviceIdentity(ctx context.Context, deviceID string) (DeviceKeyPair, error) {
	priv, err := crypto.GenerateDeviceKeyPair()
	if err != nil {
		return DeviceKeyPair{}, fmt.Errorf("recovery: generate device key pair: %w", err)
	}
	pubPEM, err := crypto.EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return DeviceKeyPair{}, fmt.Errorf("recovery: encode public key: %w", err)
	}
	return DeviceKeyPair{ID: deviceID, PrivateKey: priv, PublicPEM: pubPEM}, nil
}

// UnwrapVaultKey recovers the vault key a remote peer wrapped for this
// device during authorization.
func UnwrapVaultKey(wrapped []byte, devicePrivateKey *rsa.PrivateKey) ([]byte, error) {
	vaultKey, err := crypto.UnwrapVaultKey(wrapped, devicePrivateKey)
	if err != nil {
		return nil, fmt.Errorf("recovery: unwrap vault key: %w", err)
	}
	return vaultKey, nil
}
