package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/engramhq/engram/internal/secrets"
	"github.com/engramhq/engram/internal/storage"
)

// SecretsEngine pushes local secret sync events to the remote server and
// pulls remote events into the local Secrets Store, in a separate cursor
// domain from MemoryEngine (SPEC_FULL.md §4.7).
type SecretsEngine struct {
	client  *client
	store   *secrets.Store
	cursors *sqlCursorStore
	cache   CursorCache

	mu    sync.Mutex
	state ConnectionState
}

func NewSecretsEngine(cfg Config, db *storage.DB, store *secrets.Store, cache CursorCache) *SecretsEngine {
	return &SecretsEngine{
		client:  newClient(cfg),
		store:   store,
		cursors: newSQLCursorStore(db),
		cache:   cache,
		state:   StateDisconnected,
	}
}

func (e *SecretsEngine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *SecretsEngine) setState(s ConnectionState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// PushSecret implements secrets.Engine: it is called synchronously by the
// Secrets Store right after a local write and its journal entry have
// committed, so the push follows the local record rather than preceding
// it. A push failure is returned to the caller, which logs it.
func (e *SecretsEngine) PushSecret(keyName string, event secrets.SyncEvent) error {
	ctx := context.Background()
	req := PushSecretEventRequest{
		DeviceID:    e.client.deviceID,
		EventID:     event.ID,
		EventType:   string(event.Type),
		BlindID:     event.BlindID,
		Blob:        BlobRef{InlineBase64: base64.StdEncoding.EncodeToString([]byte(event.EncryptedData + "|" + event.IV))},
		Checksum:    event.Checksum,
		SequenceNum: event.SequenceNum,
	}
	if err := e.client.doJSON(ctx, "POST", "/v1/secrets/events", req, nil); err != nil {
		e.setState(StateDisconnected)
		return fmt.Errorf("sync: secret push: %w", err)
	}
	e.setState(StateConnected)
	return nil
}

// PullSecrets downloads remote secret events newer than the remembered
// cursor and applies each to the local Secrets Store via
// secrets.Store.ApplySecretSyncEvent, which resolves blind_id to a local
// secret_id (see that method's doc comment for why a blind_id this
// device has never synced before is dropped rather than materialized).
func (e *SecretsEngine) PullSecrets(ctx context.Context) ([]PushSecretEventRequest, error) {
	cursor, err := readCursor(ctx, e.cursors, e.cache, "secrets_pull_cursor")
	if err != nil {
		return nil, err
	}

	var resp PullSecretEventsResponse
	if err := e.client.doJSON(ctx, "GET", fmt.Sprintf("/v1/secrets/events?since=%d", cursor), nil, &resp); err != nil {
		e.setState(StateDisconnected)
		return nil, fmt.Errorf("sync: secrets pull: %w", err)
	}

	for _, wireEvent := range resp.Events {
		raw, err := base64.StdEncoding.DecodeString(wireEvent.Blob.InlineBase64)
		if err != nil {
			continue
		}
		encryptedData, iv := splitSecretBlob(string(raw))
		event := secrets.SyncEvent{
			ID:            wireEvent.EventID,
			Type:          secrets.EventType(wireEvent.EventType),
			EncryptedData: encryptedData,
			IV:            iv,
			Checksum:      wireEvent.Checksum,
			BlindID:       wireEvent.BlindID,
			SequenceNum:   wireEvent.SequenceNum,
		}
		if err := e.store.ApplySecretSyncEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("sync: apply secret event %s: %w", event.ID, err)
		}
	}

	if err := writeCursor(ctx, e.cursors, e.cache, "secrets_pull_cursor", resp.NextCursor); err != nil {
		return nil, err
	}
	e.setState(StateConnected)
	return resp.Events, nil
}

// splitSecretBlob reverses PushSecret's "ciphertext|iv" blob packing.
func splitSecretBlob(raw string) (encryptedData, iv string) {
	idx := strings.LastIndexByte(raw, '|')
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], raw[idx+1:]
}
