package indexing_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/engramhq/engram/internal/dlp"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/indexing"
	"github.com/engramhq/engram/internal/indexing/parsers"
	"github.com/engramhq/engram/internal/memory"
	"github.com/engramhq/engram/internal/storage"
)

const testDim = 8

func newTestService(t *testing.T) (*indexing.Service, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "engram.db"), testDim)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	vaultKey := make([]byte, 32)
	memories := memory.New(db, dlp.Default(), vaultKey)
	embedder := embedding.NewFake(testDim)

	svc, err := indexing.New(db, memories, embedder, []indexing.Parser{parsers.NewFrontmatterParser(), parsers.NewSessionsParser()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func TestIngestFileStoresMemory(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "SKILL.md")
	content := "---\nname: test-skill\ndescription: a test\n---\n\nbody content here\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := svc.IngestFile(ctx, path); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var count int
	if err := db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 memory stored, got %d", count)
	}

	events := svc.RecentEvents()
	if len(events) == 0 {
		t.Fatal("expected progress events recorded")
	}
	lastState := events[len(events)-1].State
	if lastState != indexing.StateStored {
		t.Errorf("expected final state stored, got %v", lastState)
	}
}

func TestIngestFileSkipsUnknownFormat(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := svc.IngestFile(ctx, path); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	events := svc.RecentEvents()
	if events[len(events)-1].State != indexing.StateSkipped {
		t.Errorf("expected skipped state, got %v", events[len(events)-1].State)
	}
}

func TestIngestFileDedupesBySource(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "SKILL.md")
	content := "---\nname: dup\ndescription: dup test\n---\n\nbody\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := svc.IngestFile(ctx, path); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if err := svc.IngestFile(ctx, path); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	var count int
	if err := db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected dedupe to keep count at 1, got %d", count)
	}
}
