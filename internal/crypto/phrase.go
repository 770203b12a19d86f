package crypto

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// GenerateRecoveryPhrase returns a 24-word BIP39 mnemonic encoding a fresh
// 256-bit key, and the key itself.
func GenerateRecoveryPhrase() (phrase string, key []byte, err error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", nil, fmt.Errorf("crypto: generate entropy: %w", err)
	}
	phrase, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, fmt.Errorf("crypto: build mnemonic: %w", err)
	}
	return phrase, entropy, nil
}

// PhraseToKey deterministically recovers the 32-byte key backing a 24-word
// BIP39 mnemonic. It rejects invalid mnemonics (bad checksum, wrong word
// count, unknown words).
func PhraseToKey(phrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(phrase) {
		return nil, fmt.Errorf("crypto: invalid recovery phrase: %w", ErrFormat)
	}
	entropy, err := bip39.EntropyFromMnemonic(phrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: recover entropy: %w", ErrFormat)
	}
	if len(entropy) != 32 {
		return nil, fmt.Errorf("crypto: unexpected entropy length %d: %w", len(entropy), ErrFormat)
	}
	return entropy, nil
}
