package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/engramhq/engram/internal/dlp"
	"github.com/engramhq/engram/internal/storage"
)

const testVectorDim = 8

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "engram.db"), testVectorDim)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	vaultKey := make([]byte, 32)
	for i := range vaultKey {
		vaultKey[i] = byte(i)
	}
	return New(db, dlp.Default(), vaultKey)
}

func testVector(seed float32) []float32 {
	v := make([]float32, testVectorDim)
	for i := range v {
		v[i] = seed + float32(i)*0.01
	}
	return v
}

func TestCreateThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.Create(ctx, CreateInput{Content: "remember to rotate keys", Source: "test"}, testVector(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected non-empty id")
	}

	got, ok, err := s.Get(ctx, m.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Content != m.Content {
		t.Errorf("content mismatch: got %q want %q", got.Content, m.Content)
	}
}

func TestCreateRejectsEmptyContent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), CreateInput{Content: "   "}, testVector(1))
	if err != ErrContentEmpty {
		t.Errorf("expected ErrContentEmpty, got %v", err)
	}
}

func TestCreateRejectsVectorDimMismatch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), CreateInput{Content: "hello"}, []float32{1, 2, 3})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestLifecycleUpdateThenDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.Create(ctx, CreateInput{Content: "first draft"}, testVector(2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newContent := "revised draft"
	updated, ok, err := s.Update(ctx, m.ID, UpdatePatch{Content: &newContent}, nil)
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if updated.Content != newContent {
		t.Errorf("expected updated content, got %q", updated.Content)
	}
	if updated.UpdatedAt < m.UpdatedAt {
		t.Errorf("expected updated_at to advance")
	}

	deleted, err := s.Delete(ctx, m.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}

	_, ok, err = s.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Error("expected memory to be gone after delete")
	}

	// Deleting again is a no-op, not an error.
	deleted, err = s.Delete(ctx, m.ID)
	if err != nil || deleted {
		t.Errorf("expected second delete to be a no-op, got deleted=%v err=%v", deleted, err)
	}
}

func TestCreateSanitizesSecrets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	secret := "sk-" + strings.Repeat("a", 48)
	m, err := s.Create(ctx, CreateInput{Content: "api key: " + secret}, testVector(3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !containsTag(m.Tags, dlpRedactedTag) {
		t.Errorf("expected dlp-redacted tag, got %v", m.Tags)
	}
	if strings.Contains(m.Content, secret) {
		t.Errorf("expected secret to be redacted from stored content: %q", m.Content)
	}
}

func TestSyncEventAppendedOnCreateAndSequenceIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Create(ctx, CreateInput{Content: fmt.Sprintf("memory %d", i)}, testVector(float32(i))); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	events, err := s.GetSyncEventsSince(ctx, 0, 10)
	if err != nil {
		t.Fatalf("get sync events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.SequenceNum != int64(i+1) {
			t.Errorf("event %d: expected sequence_num %d, got %d", i, i+1, e.SequenceNum)
		}
		if e.Type != EventAdd {
			t.Errorf("event %d: expected ADD, got %s", i, e.Type)
		}
	}

	latest, err := s.LatestSequenceNum(ctx)
	if err != nil || latest != 3 {
		t.Errorf("expected latest sequence 3, got %d err=%v", latest, err)
	}
}

func TestApplyEncryptedSyncEventTamperDetection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.Create(ctx, CreateInput{Content: "cross-device memory"}, testVector(4))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	events, err := s.GetSyncEventsSince(ctx, 0, 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("get sync events: %v (len=%d)", err, len(events))
	}

	tampered := events[0]
	tampered.Checksum = "0000000000000000000000000000000000000000000000000000000000000000"

	err = s.ApplyEncryptedSyncEvent(ctx, tampered, testVector(4))
	if err == nil {
		t.Fatal("expected checksum mismatch error for tampered event")
	}

	// Original id is untouched since the event was never applied.
	_, ok, getErr := s.Get(ctx, m.ID)
	if getErr != nil || !ok {
		t.Fatalf("expected original memory intact: ok=%v err=%v", ok, getErr)
	}
}

func TestApplyEncryptedSyncEventUpdateOnTombstonedIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.Create(ctx, CreateInput{Content: "will be deleted"}, testVector(5))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	events, err := s.GetSyncEventsSince(ctx, 0, 10)
	if err != nil {
		t.Fatalf("get sync events: %v", err)
	}
	var updateEvent SyncEvent
	for _, e := range events {
		if e.Type == EventAdd {
			updateEvent = e
			updateEvent.Type = EventUpdate
		}
	}

	if err := s.ApplyEncryptedSyncEvent(ctx, updateEvent, testVector(5)); err != nil {
		t.Fatalf("expected no-op, got error: %v", err)
	}

	_, ok, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected tombstoned memory to remain absent")
	}
}

func TestListFiltersBySource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateInput{Content: "from a", Source: "a"}, testVector(6)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, CreateInput{Content: "from b", Source: "b"}, testVector(7)); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.List(ctx, ListOptions{Source: "a", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Source != "a" {
		t.Errorf("expected 1 memory from source a, got %+v", got)
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
