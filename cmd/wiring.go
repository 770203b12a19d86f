package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/engramhq/engram/internal/storage"
)

// encodeKey renders a raw key as base64 for terminal display.
func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// openDB opens the local SQLite database at cfg.DBPath, creating its
// parent directory on first run.
func openDB() (*storage.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("cmd: create db directory: %w", err)
	}
	db, err := storage.Open(cfg.DBPath, cfg.VectorDim)
	if err != nil {
		return nil, fmt.Errorf("cmd: open database: %w", err)
	}
	return db, nil
}
