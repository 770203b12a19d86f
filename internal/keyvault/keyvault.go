// Package keyvault stores the Master Key in the OS keychain via
// zalando/go-keyring, carried over from the teacher's go.mod dependency
// (present there for the desktop build's secure-credential storage but
// unwired in the teacher's own source tree) and wired here to the role
// SPEC_FULL.md §4.1 assigns it explicitly: "Master Key: stored in OS
// keychain."
package keyvault

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "engram"

// KeyVault is the boundary over OS-keychain storage of the Master Key,
// kept as an interface so tests can substitute an in-memory vault without
// touching the real OS keychain.
type KeyVault interface {
	Store(account string, key []byte) error
	Load(account string) ([]byte, error)
	Delete(account string) error
}

// OSKeyring is the production KeyVault backed by the platform keychain
// (macOS Keychain, Windows Credential Manager, or a Secret Service /
// D-Bus provider on Linux).
type OSKeyring struct{}

func NewOSKeyring() *OSKeyring { return &OSKeyring{} }

func (OSKeyring) Store(account string, key []byte) error {
	if err := keyring.Set(service, account, string(key)); err != nil {
		return fmt.Errorf("keyvault: store: %w", err)
	}
	return nil
}

func (OSKeyring) Load(account string) ([]byte, error) {
	value, err := keyring.Get(service, account)
	if err != nil {
		return nil, fmt.Errorf("keyvault: load: %w", err)
	}
	return []byte(value), nil
}

func (OSKeyring) Delete(account string) error {
	if err := keyring.Delete(service, account); err != nil {
		return fmt.Errorf("keyvault: delete: %w", err)
	}
	return nil
}

// Memory is an in-process KeyVault used by tests in place of the OS
// keychain. The password-derived unlock path (SPEC_FULL.md §10.1) uses no
// KeyVault at all.
type Memory struct {
	keys map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string][]byte)}
}

func (m *Memory) Store(account string, key []byte) error {
	m.keys[account] = append([]byte(nil), key...)
	return nil
}

func (m *Memory) Load(account string) ([]byte, error) {
	key, ok := m.keys[account]
	if !ok {
		return nil, fmt.Errorf("keyvault: no key stored for %q", account)
	}
	return append([]byte(nil), key...), nil
}

func (m *Memory) Delete(account string) error {
	delete(m.keys, account)
	return nil
}
