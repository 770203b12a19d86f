package recovery

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/engramhq/engram/internal/storage"
)

func TestGenerateAndRecoverKit(t *testing.T) {
	vaultKey := make([]byte, 32)
	for i := range vaultKey {
		vaultKey[i] = byte(i * 3)
	}

	kit, err := GenerateRecoveryKit(vaultKey, 5, 3)
	if err != nil {
		t.Fatalf("generate kit: %v", err)
	}
	if len(kit.Shares) != 5 {
		t.Fatalf("expected 5 shares, got %d", len(kit.Shares))
	}

	recovered, err := RecoverFromKit(kit.Shares[:3])
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if string(recovered) != string(vaultKey) {
		t.Error("recovered key does not match original")
	}
}

func TestGenerateRecoveryKitRejectsLowThreshold(t *testing.T) {
	if _, err := GenerateRecoveryKit(make([]byte, 32), 5, 1); err == nil {
		t.Error("expected error for threshold < 2")
	}
}

func TestDeviceRegistryRegisterListRevoke(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "engram.db"), 8)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	reg := NewDeviceRegistry(db)
	ctx := context.Background()

	d, err := reg.Register(ctx, "laptop", "-----BEGIN PUBLIC KEY-----\nfake\n-----END PUBLIC KEY-----")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	list, err := reg.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v (len=%d)", err, len(list))
	}
	if list[0].RevokedAt != nil {
		t.Error("expected new device to not be revoked")
	}

	if err := reg.Revoke(ctx, d.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	list, err = reg.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list after revoke: %v (len=%d)", err, len(list))
	}
	if list[0].RevokedAt == nil {
		t.Error("expected device to be revoked")
	}
}

func TestGenerateDeviceIdentityProducesUsablePEM(t *testing.T) {
	id, err := GenerateDeviceIdentity(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	if id.PublicPEM == "" {
		t.Error("expected non-empty public key PEM")
	}
}
