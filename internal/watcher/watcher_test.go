package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAddPathEmitsAddedForExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	w, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Stop()
	w.Start(context.Background())

	if err := w.AddPath(dir); err != nil {
		t.Fatalf("add path: %v", err)
	}

	select {
	case e := <-w.Changes():
		if e.Kind != EventAdded {
			t.Errorf("expected EventAdded, got %v", e.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial scan event")
	}
}

func TestAddPathSkipsDotfileSegments(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".git")
	if err := os.MkdirAll(hidden, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hidden, "config"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Stop()
	w.Start(context.Background())

	if err := w.AddPath(dir); err != nil {
		t.Fatalf("add path: %v", err)
	}

	select {
	case e := <-w.Changes():
		t.Fatalf("expected no events from dotfile dir, got %+v", e)
	case <-time.After(300 * time.Millisecond):
		// expected: nothing emitted
	}
}
