package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// RSAKeySize is the device key-pair size used to wrap the Vault Key for
// per-device authorization (SPEC_FULL.md §4.1).
const RSAKeySize = 4096

// GenerateDeviceKeyPair creates a fresh RSA-4096 key pair for a new device.
func GenerateDeviceKeyPair() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, RSAKeySize)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate rsa key: %w", err)
	}
	return key, nil
}

// EncodePublicKeyPEM renders an RSA public key as an SPKI PEM block, the
// wire format for Device.public_key.
func EncodePublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("crypto: marshal public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// EncodePrivateKeyPEM renders an RSA private key as a PKCS#8 PEM block,
// for persisting a device's own identity (see internal/keyvault).
func EncodePrivateKeyPEM(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("crypto: marshal private key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// ParsePrivateKeyPEM parses a PKCS#8 PEM block back into an RSA private key.
func ParsePrivateKeyPEM(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("crypto: decode pem: %w", ErrFormat)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", ErrFormat)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("crypto: not an rsa private key: %w", ErrFormat)
	}
	return rsaKey, nil
}

// ParsePublicKeyPEM parses an SPKI PEM block back into an RSA public key.
func ParsePublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("crypto: decode pem: %w", ErrFormat)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse public key: %w", ErrFormat)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: not an rsa public key: %w", ErrFormat)
	}
	return rsaPub, nil
}

// WrapVaultKey encrypts the Vault Key under a device's RSA public key with
// OAEP-SHA256, for distribution during device authorization.
func WrapVaultKey(vaultKey []byte, devicePublicKey *rsa.PublicKey) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, devicePublicKey, vaultKey, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: rsa-oaep wrap: %w", err)
	}
	return wrapped, nil
}

// UnwrapVaultKey decrypts a wrapped Vault Key with the device's private key.
func UnwrapVaultKey(wrapped []byte, devicePrivateKey *rsa.PrivateKey) ([]byte, error) {
	vaultKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, devicePrivateKey, wrapped, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return vaultKey, nil
}
