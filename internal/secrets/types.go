// Package secrets implements the Secrets Store: envelope-encrypted
// key/value storage keyed by a unique key_name, with an append-only sync
// journal mirroring the shape of the Memory Store's (SPEC_FULL.md §4.4),
// grounded on the teacher's store.ConfigSecretsStore Get/Set/Delete/GetAll
// shape in internal/store/config_secrets_store.go and its Postgres
// implementation's encrypt-on-write / decrypt-on-read texture.
package secrets

import "errors"

// ErrChecksumMismatch indicates a pulled sync event's decrypted plaintext
// does not match its declared checksum; the event is rejected, not applied.
var ErrChecksumMismatch = errors.New("secrets: checksum mismatch")

// Secret is a single key/value pair, always stored encrypted at rest.
type Secret struct {
	ID          string
	KeyName     string
	Value       string
	Description string
	CreatedAt   int64
	UpdatedAt   int64
}

// SetInput is the caller-supplied payload for Set.
type SetInput struct {
	KeyName     string
	Value       string
	Description string
}

// EventType enumerates secret sync event kinds.
type EventType string

const (
	EventUpsert EventType = "UPSERT"
	EventDelete EventType = "DELETE"
)

// SyncEvent is one append-only secret journal row, blind-indexed by
// KeyName's HMAC so a sync peer can match events without learning the key
// name in the clear.
type SyncEvent struct {
	ID            string
	Type          EventType
	SecretID      string
	EncryptedData string
	IV            string
	Checksum      string
	BlindID       string
	Timestamp     int64
	SequenceNum   int64
}

// Engine delegates outbound secret mutations to a sync backend. Kept as
// an interface here (rather than importing internal/sync directly) to
// break the import cycle described in SPEC_FULL.md §9: the sync engine
// depends on the Secrets Store for its local journal, so the store must
// not depend back on the sync engine's concrete type. PushSecret runs after
// the local write has committed; its error is logged by the Store, not
// surfaced to Set/Delete callers — a local write always succeeds
// independent of remote reachability.
type Engine interface {
	PushSecret(keyName string, event SyncEvent) error
}
