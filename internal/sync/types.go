// Package sync implements the Sync Engines: push/pull of memory and
// secret events over HTTP against a remote collaboration server, plus
// device authorization/revocation (SPEC_FULL.md §4.7). Grounded on the
// teacher's internal/tts provider HTTP-client conventions
// (http.NewRequestWithContext + bounded timeout; no bearer token is sent) and its
// internal/gateway/ratelimit.go golang.org/x/time/rate usage, adapted from
// per-request rate limiting to per-push/pull throttling against the
// remote sync server.
package sync

import "time"

// ConnectionState mirrors the Disconnected/Connected state machine from
// SPEC_FULL.md §4.9.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
)

// Config configures both sync engines and the device-authorization flow.
type Config struct {
	ServerURL      string
	DeviceID       string
	RequestsPerMin int
	Burst          int
	Timeout        time.Duration
	RedisURL       string // not read by this package; callers pass a CursorCache to the engine constructors
}

// BlobRef is either an inline base64 payload or a signed URL to fetch the
// payload from, per SPEC_FULL.md §4.7's "inline-base64-or-signed-URL"
// transport note.
type BlobRef struct {
	InlineBase64 string `json:"inline_base64,omitempty"`
	SignedURL    string `json:"signed_url,omitempty"`
}

// PushMemoryEventRequest is the wire payload for uploading one memory
// sync event. Embedding carries the pushing device's own vector so a
// peer pulling the event doesn't need a local embedder to keep its
// vector index populated.
type PushMemoryEventRequest struct {
	DeviceID    string    `json:"device_id"`
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	MemoryID    string    `json:"memory_id"`
	Blob        BlobRef   `json:"blob"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Checksum    string    `json:"checksum"`
	SequenceNum int64     `json:"sequence_num"`
}

// PullMemoryEventsResponse is the wire payload for downloading memory
// sync events newer than a cursor.
type PullMemoryEventsResponse struct {
	Events     []PushMemoryEventRequest `json:"events"`
	NextCursor int64                    `json:"next_cursor"`
}

// PushSecretEventRequest is the wire payload for uploading one secret
// sync event, blind-indexed rather than carrying the key name in the
// clear.
type PushSecretEventRequest struct {
	DeviceID    string  `json:"device_id"`
	EventID     string  `json:"event_id"`
	EventType   string  `json:"event_type"`
	BlindID     string  `json:"blind_id"`
	Blob        BlobRef `json:"blob"`
	Checksum    string  `json:"checksum"`
	SequenceNum int64   `json:"sequence_num"`
}

// PullSecretEventsResponse mirrors PullMemoryEventsResponse for secrets.
type PullSecretEventsResponse struct {
	Events     []PushSecretEventRequest `json:"events"`
	NextCursor int64                    `json:"next_cursor"`
}

// AuthorizeDeviceRequest wraps the vault key under the requesting
// device's RSA public key for initial pairing.
type AuthorizeDeviceRequest struct {
	DeviceID         string `json:"device_id"`
	DeviceName       string `json:"device_name"`
	WrappedVaultKey  string `json:"wrapped_vault_key"`
}

// RevokeDeviceRequest revokes a previously authorized device.
type RevokeDeviceRequest struct {
	DeviceID string `json:"device_id"`
}
