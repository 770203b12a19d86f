package sync

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/engramhq/engram/internal/storage"
)

// CursorCache is an optional accelerator in front of the authoritative SQL
// sync_state table (SPEC_FULL.md §4.7): when configured (ENGRAM_REDIS_URL
// set), reads are served from it first, but every write still goes
// through to SQL so a cache outage never loses sync position.
type CursorCache interface {
	GetCursor(ctx context.Context, key string) (int64, bool, error)
	SetCursor(ctx context.Context, key string, value int64) error
}

// sqlCursorStore persists cursors in the sync_state table. It is always
// present; CursorCache is layered in front of it, never instead of it.
type sqlCursorStore struct {
	db *storage.DB
}

func newSQLCursorStore(db *storage.DB) *sqlCursorStore {
	return &sqlCursorStore{db: db}
}

func (s *sqlCursorStore) get(ctx context.Context, key string) (int64, error) {
	var value string
	err := s.db.Conn.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sync: read cursor %s: %w", key, err)
	}
	var v int64
	if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
		return 0, nil
	}
	return v, nil
}

func (s *sqlCursorStore) set(ctx context.Context, key string, value int64) error {
	_, err := s.db.Conn.ExecContext(ctx,
		`INSERT INTO sync_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, fmt.Sprintf("%d", value),
	)
	if err != nil {
		return fmt.Errorf("sync: write cursor %s: %w", key, err)
	}
	return nil
}

// readCursor consults cache first (best-effort), falling back to SQL.
func readCursor(ctx context.Context, sqlStore *sqlCursorStore, cache CursorCache, key string) (int64, error) {
	if cache != nil {
		if v, ok, err := cache.GetCursor(ctx, key); err == nil && ok {
			return v, nil
		}
	}
	return sqlStore.get(ctx, key)
}

// writeCursor always writes SQL, and best-effort mirrors to cache.
func writeCursor(ctx context.Context, sqlStore *sqlCursorStore, cache CursorCache, key string, value int64) error {
	if err := sqlStore.set(ctx, key, value); err != nil {
		return err
	}
	if cache != nil {
		_ = cache.SetCursor(ctx, key, value)
	}
	return nil
}
