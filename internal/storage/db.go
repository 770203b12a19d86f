// Package storage owns the SQL connection and schema bootstrap for
// Engram's local store: a SQLite database opened via the pure-Go
// ncruces/go-sqlite3 driver with the sqlite-vec extension loaded for ANN
// vector search, WAL mode, and busy-timeout tuned for a single-writer
// embedded workload. Grounded on the teacher's internal/memory/sqlite.go
// connection-string conventions, swapped from modernc.org/sqlite to
// ncruces/go-sqlite3 so the sqlite-vec virtual table (vec0) can be
// registered — modernc.org/sqlite has no extension-loading mechanism for
// that. See DESIGN.md for the full justification of this driver swap.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces" // registers vec0 virtual table
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed" // statically links sqlite3
)

// DB wraps the shared *sql.DB connection plus the configured vector
// dimension, fixed at initialization per SPEC_FULL.md §3.2.
type DB struct {
	Conn      *sql.DB
	VectorDim int
}

// Open opens (creating if necessary) the SQLite database at path, enables
// WAL mode and a busy timeout, and runs schema bootstrap.
func Open(path string, vectorDim int) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	conn.SetMaxOpenConns(1) // single-writer discipline, SPEC_FULL.md §5

	db := &DB{Conn: conn, VectorDim: vectorDim}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	slog.Info("storage: opened", "path", path, "vector_dim", vectorDim)
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.Conn.Close()
}
