// Package embedding defines the opaque embedding-provider boundary used
// by the Memory Store and Indexing Service, grounded on the teacher's
// store.EmbeddingProvider interface in internal/store/memory_store.go. The
// concrete model backing Embedder is out of scope (SPEC_FULL.md §1
// Non-goals) — this package only defines the boundary plus a deterministic
// fake used by tests and wired by engram serve as its embedder.
package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Embedder generates vector embeddings for text and reports readiness so
// callers can distinguish "not loaded yet" from "permanently unavailable".
type Embedder interface {
	Name() string
	Dim() int
	IsReady() bool
	IsLoading() bool
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Fake is a deterministic, dependency-free Embedder for tests: it hashes
// each input string into a fixed-dimension vector so that identical text
// always produces an identical embedding without invoking a real model.
type Fake struct {
	dim     int
	mu      sync.Mutex
	ready   bool
	loading bool
}

func NewFake(dim int) *Fake {
	return &Fake{dim: dim, ready: true}
}

func (f *Fake) Name() string { return "fake" }
func (f *Fake) Dim() int     { return f.dim }

func (f *Fake) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *Fake) IsLoading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// SetReady lets tests simulate a model that is still warming up.
func (f *Fake) SetReady(ready, loading bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = ready
	f.loading = loading
}

func (f *Fake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !f.IsReady() {
		return nil, fmt.Errorf("embedding: fake embedder not ready")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashToVector(text, f.dim)
	}
	return out, nil
}

func hashToVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	var h uint32 = 2166136261
	for i := 0; i < len(text); i++ {
		h ^= uint32(text[i])
		h *= 16777619
		v[i%dim] += float32(h%1000) / 1000.0
	}
	return v
}
