// Package vault manages the Master Key / Vault Key / Blind-Index Key
// hierarchy's local persistence (SPEC_FULL.md §4.1): the Master Key
// lives in the OS keychain via internal/keyvault, while the Vault Key
// and Blind-Index Key are generated once, enveloped under the Master
// Key, and stored in the local_vault_key table so each unlock only
// needs the keychain (or a password) rather than regenerating keys.
package vault

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"

	"github.com/engramhq/engram/internal/crypto"
	"github.com/engramhq/engram/internal/keyvault"
	"github.com/engramhq/engram/internal/storage"
)

const masterKeyAccount = "master-key"

// Session holds the unlocked key hierarchy for the lifetime of a
// serve/CLI invocation.
type Session struct {
	MasterKey     []byte
	VaultKey      []byte
	BlindIndexKey []byte
}

// Bootstrap performs first-run vault setup: generates MK/VK/BK, stores MK
// in the OS keychain, and persists the enveloped VK/BK locally. Returns an
// error wrapping crypto.ErrConfig if a vault already exists in this database.
func Bootstrap(ctx context.Context, db *storage.DB, kv keyvault.KeyVault) (Session, error) {
	if exists, err := vaultRowExists(ctx, db); err != nil {
		return Session{}, err
	} else if exists {
		return Session{}, fmt.Errorf("vault: already initialized: %w", crypto.ErrConfig)
	}

	mk, err := crypto.GenerateMasterKey()
	if err != nil {
		return Session{}, fmt.Errorf("vault: generate master key: %w", err)
	}
	if err := kv.Store(masterKeyAccount, mk); err != nil {
		return Session{}, fmt.Errorf("vault: store master key: %w", err)
	}

	return bootstrapWithMasterKey(ctx, db, mk)
}

// BootstrapWithPassword is the headless/CI unlock path (SPEC_FULL.md
// §10.1): the Master Key is derived from a password via PBKDF2 instead of
// the OS keychain, and the salt used is persisted locally.
func BootstrapWithPassword(ctx context.Context, db *storage.DB, password string) (Session, error) {
	if exists, err := vaultRowExists(ctx, db); err != nil {
		return Session{}, err
	} else if exists {
		return Session{}, fmt.Errorf("vault: already initialized: %w", crypto.ErrConfig)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return Session{}, fmt.Errorf("vault: generate salt: %w", err)
	}
	if _, err := db.Conn.ExecContext(ctx,
		`INSERT INTO local_master_key_salt (id, salt) VALUES ('default', ?)`, salt); err != nil {
		return Session{}, fmt.Errorf("vault: persist salt: %w", err)
	}

	mk := crypto.DeriveKeyFromPassword(password, salt)
	return bootstrapWithMasterKey(ctx, db, mk)
}

func bootstrapWithMasterKey(ctx context.Context, db *storage.DB, mk []byte) (Session, error) {
	vk, err := crypto.GenerateMasterKey()
	if err != nil {
		return Session{}, fmt.Errorf("vault: generate vault key: %w", err)
	}
	bk, err := crypto.GenerateMasterKey()
	if err != nil {
		return Session{}, fmt.Errorf("vault: generate blind-index key: %w", err)
	}

	vkEnv, err := crypto.Encrypt(vk, mk)
	if err != nil {
		return Session{}, fmt.Errorf("vault: envelope vault key: %w", err)
	}
	bkEnv, err := crypto.Encrypt(bk, mk)
	if err != nil {
		return Session{}, fmt.Errorf("vault: envelope blind-index key: %w", err)
	}

	now := nowMillis()
	if _, err := db.Conn.ExecContext(ctx,
		`INSERT INTO local_vault_key (id, vault_key, vault_key_iv, blind_index_key, blind_index_key_iv, created_at, updated_at)
		 VALUES ('default', ?, ?, ?, ?, ?, ?)`,
		vkEnv.Ciphertext, vkEnv.IV, bkEnv.Ciphertext, bkEnv.IV, now, now,
	); err != nil {
		return Session{}, fmt.Errorf("vault: persist vault key: %w", err)
	}

	return Session{MasterKey: mk, VaultKey: vk, BlindIndexKey: bk}, nil
}

// Unlock loads the Master Key from the OS keychain and decrypts the
// locally stored Vault Key / Blind-Index Key.
func Unlock(ctx context.Context, db *storage.DB, kv keyvault.KeyVault) (Session, error) {
	mk, err := kv.Load(masterKeyAccount)
	if err != nil {
		return Session{}, fmt.Errorf("vault: load master key: %w", err)
	}
	return unlockWithMasterKey(ctx, db, mk)
}

// UnlockWithPassword re-derives the Master Key from a password and the
// persisted salt, then decrypts the Vault Key / Blind-Index Key.
func UnlockWithPassword(ctx context.Context, db *storage.DB, password string) (Session, error) {
	var salt []byte
	err := db.Conn.QueryRowContext(ctx, `SELECT salt FROM local_master_key_salt WHERE id = 'default'`).Scan(&salt)
	if err == sql.ErrNoRows {
		return Session{}, fmt.Errorf("vault: %w: no password salt on record", crypto.ErrConfig)
	}
	if err != nil {
		return Session{}, fmt.Errorf("vault: load salt: %w", err)
	}
	mk := crypto.DeriveKeyFromPassword(password, salt)
	return unlockWithMasterKey(ctx, db, mk)
}

func unlockWithMasterKey(ctx context.Context, db *storage.DB, mk []byte) (Session, error) {
	var vkCipher, vkIV, bkCipher, bkIV string
	err := db.Conn.QueryRowContext(ctx,
		`SELECT vault_key, vault_key_iv, blind_index_key, blind_index_key_iv FROM local_vault_key WHERE id = 'default'`,
	).Scan(&vkCipher, &vkIV, &bkCipher, &bkIV)
	if err == sql.ErrNoRows {
		return Session{}, fmt.Errorf("vault: %w: not initialized, run engram init", crypto.ErrNotInitialized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("vault: load vault key: %w", err)
	}

	vk, err := crypto.Decrypt(crypto.Envelope{Ciphertext: vkCipher, IV: vkIV}, mk)
	if err != nil {
		return Session{}, fmt.Errorf("vault: decrypt vault key: %w", err)
	}
	bk, err := crypto.Decrypt(crypto.Envelope{Ciphertext: bkCipher, IV: bkIV}, mk)
	if err != nil {
		return Session{}, fmt.Errorf("vault: decrypt blind-index key: %w", err)
	}

	return Session{MasterKey: mk, VaultKey: vk, BlindIndexKey: bk}, nil
}

func vaultRowExists(ctx context.Context, db *storage.DB) (bool, error) {
	var count int
	if err := db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM local_vault_key WHERE id = 'default'`).Scan(&count); err != nil {
		return false, fmt.Errorf("vault: check existing: %w", err)
	}
	return count > 0, nil
}
