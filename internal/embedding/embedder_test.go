package embedding

import (
	"context"
	"reflect"
	"testing"
)

func TestFakeEmbedIsDeterministic(t *testing.T) {
	f := NewFake(16)
	out1, err := f.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	out2, err := f.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if !reflect.DeepEqual(out1, out2) {
		t.Errorf("expected identical embeddings for identical text, got %v and %v", out1, out2)
	}
}

func TestFakeEmbedDistinguishesText(t *testing.T) {
	f := NewFake(16)
	out, err := f.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if reflect.DeepEqual(out[0], out[1]) {
		t.Error("expected different embeddings for different text")
	}
}

func TestFakeNotReadyReturnsError(t *testing.T) {
	f := NewFake(8)
	f.SetReady(false, true)
	if _, err := f.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error when not ready")
	}
}
