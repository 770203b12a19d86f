package indexing

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/storage"
)

const ringCapacity = 200

// progressRing holds the most recent ringCapacity events in memory for
// Service.RecentEvents (logged by engram serve --verbose), and persists each one best-effort into the
// indexing_events table — a persistence failure is logged and otherwise
// ignored, since the ring itself is the source of truth for the running
// process.
type progressRing struct {
	db *storage.DB

	mu     sync.Mutex
	events []ProgressEvent
	head   int
}

func newProgressRing(db *storage.DB) *progressRing {
	return &progressRing{db: db, events: make([]ProgressEvent, 0, ringCapacity)}
}

func (r *progressRing) push(ctx context.Context, e ProgressEvent) {
	r.mu.Lock()
	if len(r.events) < ringCapacity {
		r.events = append(r.events, e)
	} else {
		r.events[r.head] = e
		r.head = (r.head + 1) % ringCapacity
	}
	r.mu.Unlock()

	if r.db == nil {
		return
	}
	_, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO indexing_events (id, event_type, path, detail, timestamp) VALUES (?, ?, ?, ?, ?)`,
		uuid.Must(uuid.NewV7()).String(), string(e.State), e.Path, nullableString(e.Detail), e.Timestamp,
	)
	if err != nil {
		slog.Warn("indexing: failed to persist progress event", "path", e.Path, "error", err)
	}
}

// Recent returns the ring's current contents in chronological order.
func (r *progressRing) Recent() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) < ringCapacity {
		out := make([]ProgressEvent, len(r.events))
		copy(out, r.events)
		return out
	}
	out := make([]ProgressEvent, ringCapacity)
	for i := 0; i < ringCapacity; i++ {
		out[i] = r.events[(r.head+i)%ringCapacity]
	}
	return out
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
