package storage

import "fmt"

// migrate creates the schema if absent. Forward-only additive DDL only —
// per SPEC_FULL.md Non-goals, there is no migration framework beyond
// CREATE TABLE/INDEX IF NOT EXISTS statements, matching the teacher's own
// internal/memory/sqlite.go migrate() style.
func (db *DB) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			vector BLOB NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			source TEXT,
			confidence REAL NOT NULL DEFAULT 1.0,
			is_verified INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_source ON memories(source)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS memories_vec USING vec0(
			memory_id TEXT PRIMARY KEY,
			embedding FLOAT[%d] distance_metric=cosine
		)`, db.VectorDim),
		`CREATE TABLE IF NOT EXISTS sync_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			memory_id TEXT NOT NULL,
			encrypted_data TEXT,
			checksum TEXT,
			timestamp INTEGER NOT NULL,
			sequence_num INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_events_seq ON sync_events(sequence_num)`,
		`CREATE TABLE IF NOT EXISTS secrets (
			id TEXT PRIMARY KEY,
			key_name TEXT NOT NULL UNIQUE,
			encrypted_value TEXT NOT NULL,
			iv TEXT NOT NULL,
			description TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS local_secret_sync_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			secret_id TEXT NOT NULL,
			encrypted_data TEXT,
			iv TEXT,
			checksum TEXT,
			blind_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			sequence_num INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_secret_sync_events_seq ON local_secret_sync_events(sequence_num)`,
		`CREATE INDEX IF NOT EXISTS idx_secret_sync_events_blind_id ON local_secret_sync_events(blind_id)`,
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS local_vault_key (
			id TEXT PRIMARY KEY DEFAULT 'default',
			vault_key BLOB NOT NULL,
			vault_key_iv TEXT NOT NULL,
			blind_index_key BLOB NOT NULL,
			blind_index_key_iv TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS local_master_key_salt (
			id TEXT PRIMARY KEY DEFAULT 'default',
			salt BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS indexing_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			path TEXT NOT NULL,
			detail TEXT,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			name TEXT,
			public_key TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_sync_at INTEGER,
			revoked_at INTEGER
		)`,
	}

	tx, err := db.Conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}

	return tx.Commit()
}
