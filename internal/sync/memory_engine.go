package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/engramhq/engram/internal/memory"
	"github.com/engramhq/engram/internal/storage"
	"github.com/engramhq/engram/internal/tracing"
)

// MemoryEngine pushes local memory sync events to the remote server and
// pulls remote events into the local Memory Store. It owns its own
// connection state machine (SPEC_FULL.md §4.9) independently of the
// secrets engine's.
type MemoryEngine struct {
	client   *client
	memories *memory.Store
	cursors  *sqlCursorStore
	cache    CursorCache // optional accelerator; SQL remains authoritative

	mu    sync.Mutex
	state ConnectionState
}

// NewMemoryEngine wires a MemoryEngine. cache may be nil.
func NewMemoryEngine(cfg Config, db *storage.DB, memories *memory.Store, cache CursorCache) *MemoryEngine {
	return &MemoryEngine{
		client:   newClient(cfg),
		memories: memories,
		cursors:  newSQLCursorStore(db),
		cache:    cache,
		state:    StateDisconnected,
	}
}

func (e *MemoryEngine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *MemoryEngine) setState(s ConnectionState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Push uploads up to 200 local events with sequence_num greater than the
// remembered cursor; any further events wait for the next call.
func (e *MemoryEngine) Push(ctx context.Context) (err error) {
	ctx, end := tracing.StartSpan(ctx, "sync.memory_push")
	defer func() { end(err) }()

	cursor, err := readCursor(ctx, e.cursors, e.cache, "memory_push_cursor")
	if err != nil {
		return err
	}

	events, err := e.memories.GetSyncEventsSince(ctx, cursor, 200)
	if err != nil {
		e.setState(StateDisconnected)
		return fmt.Errorf("sync: memory push: load local events: %w", err)
	}

	for _, ev := range events {
		var vector []float32
		if m, ok, err := e.memories.Get(ctx, ev.MemoryID); err == nil && ok {
			vector = m.Vector
		}
		req := PushMemoryEventRequest{
			DeviceID:    e.client.deviceID,
			EventID:     ev.ID,
			EventType:   string(ev.Type),
			MemoryID:    ev.MemoryID,
			Blob:        BlobRef{InlineBase64: base64.StdEncoding.EncodeToString([]byte(ev.EncryptedData))},
			Embedding:   vector,
			Checksum:    ev.Checksum,
			SequenceNum: ev.SequenceNum,
		}
		if err := e.client.doJSON(ctx, "POST", "/v1/memory/events", req, nil); err != nil {
			e.setState(StateDisconnected)
			return fmt.Errorf("sync: memory push: %w", err)
		}
		if err := writeCursor(ctx, e.cursors, e.cache, "memory_push_cursor", ev.SequenceNum); err != nil {
			return err
		}
	}
	e.setState(StateConnected)
	return nil
}

// Pull downloads remote events newer than the remembered pull cursor and
// applies each one to the local Memory Store, using the embedding the
// pushing device attached to the event.
func (e *MemoryEngine) Pull(ctx context.Context) (err error) {
	ctx, end := tracing.StartSpan(ctx, "sync.memory_pull")
	defer func() { end(err) }()

	cursor, err := readCursor(ctx, e.cursors, e.cache, "memory_pull_cursor")
	if err != nil {
		return err
	}

	var resp PullMemoryEventsResponse
	if err := e.client.doJSON(ctx, "GET", fmt.Sprintf("/v1/memory/events?since=%d", cursor), nil, &resp); err != nil {
		e.setState(StateDisconnected)
		return fmt.Errorf("sync: memory pull: %w", err)
	}

	for _, wireEvent := range resp.Events {
		raw, err := base64.StdEncoding.DecodeString(wireEvent.Blob.InlineBase64)
		if err != nil {
			continue
		}
		event := memory.SyncEvent{
			ID:            wireEvent.EventID,
			Type:          memory.EventType(wireEvent.EventType),
			MemoryID:      wireEvent.MemoryID,
			EncryptedData: string(raw),
			Checksum:      wireEvent.Checksum,
			SequenceNum:   wireEvent.SequenceNum,
		}

		if err := e.memories.ApplyEncryptedSyncEvent(ctx, event, wireEvent.Embedding); err != nil {
			return fmt.Errorf("sync: apply memory event %s: %w", event.ID, err)
		}
	}
	if err := writeCursor(ctx, e.cursors, e.cache, "memory_pull_cursor", resp.NextCursor); err != nil {
		return err
	}
	e.setState(StateConnected)
	return nil
}
