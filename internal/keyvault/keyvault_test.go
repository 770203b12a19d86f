package keyvault

import "testing"

func TestMemoryStoreThenLoad(t *testing.T) {
	v := NewMemory()
	key := []byte("0123456789abcdef0123456789abcdef")

	if err := v.Store("master", key); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := v.Load("master")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != string(key) {
		t.Errorf("expected %q, got %q", key, got)
	}
}

func TestMemoryLoadMissingReturnsError(t *testing.T) {
	v := NewMemory()
	if _, err := v.Load("missing"); err == nil {
		t.Error("expected error loading missing account")
	}
}

func TestMemoryDeleteThenLoadFails(t *testing.T) {
	v := NewMemory()
	_ = v.Store("master", []byte("k"))
	if err := v.Delete("master"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := v.Load("master"); err == nil {
		t.Error("expected error after delete")
	}
}
