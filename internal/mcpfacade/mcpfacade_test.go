package mcpfacade

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	mcppkg "github.com/mark3labs/mcp-go/mcp"

	"github.com/engramhq/engram/internal/dlp"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/memory"
	"github.com/engramhq/engram/internal/recovery"
	"github.com/engramhq/engram/internal/secrets"
	"github.com/engramhq/engram/internal/storage"
)

const testDim = 8

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "engram.db"), testDim)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	vaultKey := make([]byte, 32)
	blindKey := make([]byte, 32)
	for i := range vaultKey {
		vaultKey[i] = byte(i + 1)
		blindKey[i] = byte(i + 2)
	}

	memories := memory.New(db, dlp.CachedDefault(), vaultKey)
	secretsStore := secrets.New(db, vaultKey, blindKey)
	devices := recovery.NewDeviceRegistry(db)

	return Deps{
		Memories: memories,
		Secrets:  secretsStore,
		Embedder: embedding.NewFake(testDim),
		Devices:  devices,
		VaultKey: vaultKey,
	}
}

func callResultText(t *testing.T, res *mcppkg.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected non-empty tool result")
	}
	text, ok := mcppkg.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("expected text content")
	}
	return text.Text
}

func req(args map[string]any) mcppkg.CallToolRequest {
	return mcppkg.CallToolRequest{Params: mcppkg.CallToolParams{Arguments: args}}
}

func TestNewServerRegistersTools(t *testing.T) {
	d := newTestDeps(t)
	srv := NewServer(d)
	if srv == nil {
		t.Fatal("expected MCP server instance")
	}
}

func TestSaveThenReadMemory(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	saveRes, err := handleSaveMemory(d)(ctx, req(map[string]any{"content": "the sky is blue"}))
	if err != nil || saveRes.IsError {
		t.Fatalf("save failed: err=%v res=%v", err, saveRes)
	}
	if !strings.Contains(callResultText(t, saveRes), "Remembered:") {
		t.Fatalf("unexpected save result: %s", callResultText(t, saveRes))
	}

	readRes, err := handleReadMemory(d)(ctx, req(map[string]any{"query": "the sky is blue"}))
	if err != nil || readRes.IsError {
		t.Fatalf("read failed: err=%v res=%v", err, readRes)
	}
	if !strings.Contains(callResultText(t, readRes), "similarity:") {
		t.Fatalf("unexpected read result: %s", callResultText(t, readRes))
	}
}

func TestReadMemoryEmptyStore(t *testing.T) {
	d := newTestDeps(t)
	res, err := handleReadMemory(d)(context.Background(), req(map[string]any{"query": "anything"}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: err=%v res=%v", err, res)
	}
	if callResultText(t, res) != "No relevant memories found." {
		t.Fatalf("unexpected result: %s", callResultText(t, res))
	}
}

func TestDeleteMemoryNotFound(t *testing.T) {
	d := newTestDeps(t)
	res, err := handleDeleteMemory(d)(context.Background(), req(map[string]any{"memory_id": "missing"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(callResultText(t, res), "not found") {
		t.Fatalf("unexpected result: %s", callResultText(t, res))
	}
}

func TestMemoryStatusReportsReady(t *testing.T) {
	d := newTestDeps(t)
	res, err := handleMemoryStatus(d)(context.Background(), req(map[string]any{}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: err=%v res=%v", err, res)
	}
	if !strings.Contains(callResultText(t, res), "Embedding model: Ready") {
		t.Fatalf("unexpected result: %s", callResultText(t, res))
	}
}

func TestSetThenGetSecret(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	setRes, err := handleSetSecret(d)(ctx, req(map[string]any{"key_name": "api_key", "value": "sk-test"}))
	if err != nil || setRes.IsError {
		t.Fatalf("set failed: err=%v res=%v", err, setRes)
	}

	getRes, err := handleGetSecret(d)(ctx, req(map[string]any{"key_name": "api_key"}))
	if err != nil || getRes.IsError {
		t.Fatalf("get failed: err=%v res=%v", err, getRes)
	}
	if callResultText(t, getRes) != "sk-test" {
		t.Fatalf("unexpected secret value: %s", callResultText(t, getRes))
	}
}

func TestGetSecretWithoutVaultReturnsError(t *testing.T) {
	d := newTestDeps(t)
	d.Secrets = nil
	res, err := handleGetSecret(d)(context.Background(), req(map[string]any{"key_name": "x"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError || !strings.Contains(callResultText(t, res), "vault not initialized") {
		t.Fatalf("expected vault-not-initialized error, got: %v", res)
	}
}

func TestAuthorizeThenListDevices(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	identity, err := recovery.GenerateDeviceIdentity(ctx, "dev-1")
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	authRes, err := handleAuthorizeDevice(d)(ctx, req(map[string]any{
		"device_id":             "dev-1",
		"device_name":           "laptop",
		"device_public_key_pem": identity.PublicPEM,
	}))
	if err != nil || authRes.IsError {
		t.Fatalf("authorize failed: err=%v res=%v", err, authRes)
	}

	listRes, err := handleListDevices(d)(ctx, req(map[string]any{}))
	if err != nil || listRes.IsError {
		t.Fatalf("list failed: err=%v res=%v", err, listRes)
	}
	if !strings.Contains(callResultText(t, listRes), "laptop") {
		t.Fatalf("unexpected list result: %s", callResultText(t, listRes))
	}
}

func TestCreateRecoveryKit(t *testing.T) {
	d := newTestDeps(t)
	res, err := handleCreateRecoveryKit(d)(context.Background(), req(map[string]any{"shares": float64(5), "threshold": float64(3)}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: err=%v res=%v", err, res)
	}
	if !strings.Contains(callResultText(t, res), "Any 3 of these 5 shares") {
		t.Fatalf("unexpected result: %s", callResultText(t, res))
	}
}
