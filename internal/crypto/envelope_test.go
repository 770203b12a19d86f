package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	plaintexts := []string{
		"short",
		"a longer piece of plaintext that should still round-trip cleanly",
		"exactly at a boundary maybe not but good enough",
	}

	for _, pt := range plaintexts {
		env, err := Encrypt([]byte(pt), key)
		if err != nil {
			t.Fatalf("encrypt(%q): %v", pt, err)
		}
		got, err := Decrypt(env, key)
		if err != nil {
			t.Fatalf("decrypt(%q): %v", pt, err)
		}
		if !bytes.Equal(got, []byte(pt)) {
			t.Errorf("round trip mismatch: got %q want %q", got, pt)
		}
	}
}

func TestEncryptIVFreshness(t *testing.T) {
	key, _ := GenerateMasterKey()
	a, err := Encrypt([]byte("same plaintext"), key)
	if err != nil {
		t.Fatalf("encrypt a: %v", err)
	}
	b, err := Encrypt([]byte("same plaintext"), key)
	if err != nil {
		t.Fatalf("encrypt b: %v", err)
	}
	if a.IV == b.IV {
		t.Errorf("expected distinct IVs, got the same value twice")
	}
	if a.Ciphertext == b.Ciphertext {
		t.Errorf("expected distinct ciphertexts, got the same value twice")
	}
}

func TestDecryptAuthFailure(t *testing.T) {
	key, _ := GenerateMasterKey()
	env, err := Encrypt([]byte("tamper me"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	other, _ := GenerateMasterKey()
	if _, err := Decrypt(env, other); err == nil {
		t.Fatalf("expected auth failure decrypting with wrong key")
	}
}

func TestDecryptFormatError(t *testing.T) {
	key, _ := GenerateMasterKey()
	env := Envelope{Ciphertext: "no-dot-here", IV: "AAAAAAAAAAAAAAAAAAAAAA=="}
	if _, err := Decrypt(env, key); err == nil {
		t.Fatalf("expected format error for malformed envelope")
	}
}

func TestShamirSplitCombine(t *testing.T) {
	secret, _ := GenerateMasterKey()
	shares, err := SplitSecret(secret, 5, 3)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(shares) != 5 {
		t.Fatalf("expected 5 shares, got %d", len(shares))
	}

	recovered, err := CombineShares(shares[:3])
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if !bytes.Equal(recovered, secret) {
		t.Errorf("recovered secret does not match original")
	}
}

func TestRecoveryPhraseRoundTrip(t *testing.T) {
	phrase, key, err := GenerateRecoveryPhrase()
	if err != nil {
		t.Fatalf("generate phrase: %v", err)
	}
	got, err := PhraseToKey(phrase)
	if err != nil {
		t.Fatalf("phrase to key: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Errorf("phrase round trip mismatch")
	}
}

func TestPhraseToKeyRejectsInvalid(t *testing.T) {
	if _, err := PhraseToKey("not a valid mnemonic at all"); err == nil {
		t.Fatalf("expected error for invalid mnemonic")
	}
}

func TestBlindIndexDeterministic(t *testing.T) {
	bk, _ := GenerateMasterKey()
	a := BlindIndex(bk, "AWS_SECRET")
	b := BlindIndex(bk, "AWS_SECRET")
	if a != b {
		t.Errorf("blind index not deterministic")
	}
	c := BlindIndex(bk, "OTHER_KEY")
	if a == c {
		t.Errorf("expected distinct blind indexes for distinct names")
	}
}
