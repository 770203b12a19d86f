package secrets

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/engramhq/engram/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "engram.db"), 8)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	vaultKey := make([]byte, 32)
	blindKey := make([]byte, 32)
	for i := range vaultKey {
		vaultKey[i] = byte(i)
		blindKey[i] = byte(i + 1)
	}
	return New(db, vaultKey, blindKey)
}

func TestSetThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sec, err := s.Set(ctx, SetInput{KeyName: "OPENAI_API_KEY", Value: "sk-test-value", Description: "for testing"})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if sec.ID == "" {
		t.Fatal("expected non-empty id")
	}

	got, ok, err := s.Get(ctx, "OPENAI_API_KEY")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Value != "sk-test-value" {
		t.Errorf("expected decrypted value, got %q", got.Value)
	}
}

func TestSetUpsertsByKeyName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Set(ctx, SetInput{KeyName: "DB_PASSWORD", Value: "v1"})
	if err != nil {
		t.Fatalf("set v1: %v", err)
	}
	second, err := s.Set(ctx, SetInput{KeyName: "DB_PASSWORD", Value: "v2"})
	if err != nil {
		t.Fatalf("set v2: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same id across upserts, got %s and %s", first.ID, second.ID)
	}

	got, ok, err := s.Get(ctx, "DB_PASSWORD")
	if err != nil || !ok || got.Value != "v2" {
		t.Fatalf("expected v2, got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestListIsAlphabetical(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"ZKEY", "AKEY", "MKEY"} {
		if _, err := s.Set(ctx, SetInput{KeyName: key, Value: "x"}); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 secrets, got %d", len(list))
	}
	if list[0].KeyName != "AKEY" || list[1].KeyName != "MKEY" || list[2].KeyName != "ZKEY" {
		t.Errorf("expected alphabetical order, got %v", []string{list[0].KeyName, list[1].KeyName, list[2].KeyName})
	}
}

func TestDeleteThenGetMisses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Set(ctx, SetInput{KeyName: "TEMP_TOKEN", Value: "x"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	deleted, err := s.Delete(ctx, "TEMP_TOKEN")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}

	_, ok, err := s.Get(ctx, "TEMP_TOKEN")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected secret to be gone after delete")
	}
}

type fakeEngine struct {
	pushed   []SyncEvent
	fail     bool
	attempts int
}

func (f *fakeEngine) PushSecret(keyName string, event SyncEvent) error {
	f.attempts++
	if f.fail {
		return errors.New("simulated push failure")
	}
	f.pushed = append(f.pushed, event)
	return nil
}

func TestSetPushesToEngineButSucceedsOnPushFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	engine := &fakeEngine{fail: true}
	s.SetEngine(engine)

	// Local write must succeed even though the remote push fails.
	if _, err := s.Set(ctx, SetInput{KeyName: "REMOTE_KEY", Value: "v"}); err != nil {
		t.Fatalf("expected local set to succeed despite push failure: %v", err)
	}
	if engine.attempts != 1 {
		t.Errorf("expected one push attempt, got %d", engine.attempts)
	}
	_, ok, err := s.Get(ctx, "REMOTE_KEY")
	if err != nil || !ok {
		t.Fatalf("expected local secret to exist: ok=%v err=%v", ok, err)
	}
}
