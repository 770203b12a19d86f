package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/engramhq/engram/internal/dlp"
	"github.com/engramhq/engram/internal/memory"
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

func TestCursorRoundTripsThroughSQL(t *testing.T) {
	db := newTestDB(t)
	store := newSQLCursorStore(db)
	ctx := context.Background()

	if err := writeCursor(ctx, store, nil, "memory_push_cursor", 42); err != nil {
		t.Fatalf("write cursor: %v", err)
	}
	got, err := readCursor(ctx, store, nil, "memory_push_cursor")
	if err != nil {
		t.Fatalf("read cursor: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestMemoryEnginePushUploadsLocalEvents(t *testing.T) {
	db := newTestDB(t)
	vaultKey := make([]byte, 32)
	memories := memory.New(db, dlp.Default(), vaultKey)

	if _, err := memories.Create(context.Background(), memory.CreateInput{Content: "remember this"}, make([]float32, 8)); err != nil {
		t.Fatalf("create: %v", err)
	}

	var received []PushMemoryEventRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req PushMemoryEventRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		received = append(received, req)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	engine := NewMemoryEngine(Config{ServerURL: srv.URL, DeviceID: "dev-1", RequestsPerMin: 600}, db, memories, nil)
	if err := engine.Push(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("expected 1 event pushed, got %d", len(received))
	}
	if engine.State() != StateConnected {
		t.Errorf("expected connected state after successful push, got %v", engine.State())
	}
}

func TestMemoryEnginePushSetsDisconnectedOnFailure(t *testing.T) {
	db := newTestDB(t)
	vaultKey := make([]byte, 32)
	memories := memory.New(db, dlp.Default(), vaultKey)
	if _, err := memories.Create(context.Background(), memory.CreateInput{Content: "x"}, make([]float32, 8)); err != nil {
		t.Fatalf("create: %v", err)
	}

	engine := NewMemoryEngine(Config{ServerURL: "http://127.0.0.1:1", DeviceID: "dev-1", RequestsPerMin: 600}, db, memories, nil)
	if err := engine.Push(context.Background()); err == nil {
		t.Fatal("expected push to fail against unreachable server")
	}
	if engine.State() != StateDisconnected {
		t.Errorf("expected disconnected state after failed push, got %v", engine.State())
	}
}
