package crypto

import (
	"encoding/base64"
	"fmt"

	vaultshamir "github.com/hashicorp/vault/shamir"
)

// Share is one Shamir share of a split secret, base64-encoded for
// transport/display.
type Share struct {
	Index int
	Data  string
}

// SplitSecret splits a 32-byte secret into total shares, any threshold of
// which recover it exactly. vault/shamir's output already embeds the share
// index as its trailing byte, but SPEC_FULL.md's RecoveryKit wants an
// explicit 0-based index alongside the data for display purposes.
func SplitSecret(secret []byte, total, threshold int) ([]Share, error) {
	if total < 2 {
		return nil, fmt.Errorf("crypto: total must be >= 2: %w", ErrRecovery)
	}
	if threshold < 2 || threshold > total {
		return nil, fmt.Errorf("crypto: threshold must be in [2, total]: %w", ErrRecovery)
	}

	parts, err := vaultshamir.Split(secret, total, threshold)
	if err != nil {
		return nil, fmt.Errorf("crypto: shamir split: %w", err)
	}

	shares := make([]Share, len(parts))
	for i, part := range parts {
		shares[i] = Share{Index: i, Data: base64.StdEncoding.EncodeToString(part)}
	}
	return shares, nil
}

// CombineShares reconstructs the original secret from at least `threshold`
// shares. Malformed or undecipherable shares fail with ErrRecovery.
func CombineShares(shares []Share) ([]byte, error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("crypto: need at least 2 shares: %w", ErrRecovery)
	}

	parts := make([][]byte, 0, len(shares))
	for _, s := range shares {
		raw, err := base64.StdEncoding.DecodeString(s.Data)
		if err != nil {
			return nil, fmt.Errorf("crypto: decode share %d: %w", s.Index, ErrRecovery)
		}
		parts = append(parts, raw)
	}

	secret, err := vaultshamir.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("crypto: shamir combine: %w", ErrRecovery)
	}
	return secret, nil
}
