package vault

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/engramhq/engram/internal/keyvault"
	"github.com/engramhq/engram/internal/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "engram.db"), 8)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBootstrapThenUnlock(t *testing.T) {
	db := newTestDB(t)
	kv := keyvault.NewMemory()
	ctx := context.Background()

	boot, err := Bootstrap(ctx, db, kv)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(boot.VaultKey) != 32 || len(boot.BlindIndexKey) != 32 {
		t.Fatalf("expected 32-byte VK/BK, got %d/%d", len(boot.VaultKey), len(boot.BlindIndexKey))
	}

	unlocked, err := Unlock(ctx, db, kv)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if string(unlocked.VaultKey) != string(boot.VaultKey) {
		t.Error("unlocked vault key does not match bootstrapped vault key")
	}
	if string(unlocked.BlindIndexKey) != string(boot.BlindIndexKey) {
		t.Error("unlocked blind-index key does not match bootstrapped blind-index key")
	}
}

func TestBootstrapTwiceFails(t *testing.T) {
	db := newTestDB(t)
	kv := keyvault.NewMemory()
	ctx := context.Background()

	if _, err := Bootstrap(ctx, db, kv); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if _, err := Bootstrap(ctx, db, kv); err == nil {
		t.Error("expected second bootstrap to fail")
	}
}

func TestBootstrapWithPasswordThenUnlock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	boot, err := BootstrapWithPassword(ctx, db, "correct horse battery staple")
	if err != nil {
		t.Fatalf("bootstrap with password: %v", err)
	}

	unlocked, err := UnlockWithPassword(ctx, db, "correct horse battery staple")
	if err != nil {
		t.Fatalf("unlock with password: %v", err)
	}
	if string(unlocked.VaultKey) != string(boot.VaultKey) {
		t.Error("unlocked vault key does not match bootstrapped vault key")
	}
}

func TestUnlockWithWrongPasswordFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := BootstrapWithPassword(ctx, db, "correct horse battery staple"); err != nil {
		t.Fatalf("bootstrap with password: %v", err)
	}
	if _, err := UnlockWithPassword(ctx, db, "wrong password"); err == nil {
		t.Error("expected unlock with wrong password to fail")
	}
}

func TestUnlockBeforeBootstrapFails(t *testing.T) {
	db := newTestDB(t)
	kv := keyvault.NewMemory()
	if _, err := Unlock(context.Background(), db, kv); err == nil {
		t.Error("expected unlock before bootstrap to fail")
	}
}
