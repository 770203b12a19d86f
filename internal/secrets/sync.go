package secrets

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/engramhq/engram/internal/crypto"
)

// ApplySecretSyncEvent applies a remote secret sync event to the local
// store. The wire protocol carries only BlindID, never key_name or
// secret_id (SPEC_FULL.md §4.7's push_secret/pull_secrets are blind-index
// only), so the local secret_id is resolved from this device's own
// journal of events seen under that blind_id (local_secret_sync_events).
// A DELETE removes the matched row. An ADD/UPDATE for a blind_id this
// device has a journal entry for updates the encrypted value in place,
// keeping the locally known key_name; a blind_id this device has never
// recorded an event for — a secret created entirely on another device —
// cannot be resolved to a key_name and is dropped, a consequence of the
// wire format never carrying the name, not a bug in this method.
func (s *Store) ApplySecretSyncEvent(ctx context.Context, event SyncEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var secretID string
	err := s.db.Conn.QueryRowContext(ctx,
		`SELECT secret_id FROM local_secret_sync_events WHERE blind_id = ? ORDER BY sequence_num DESC LIMIT 1`,
		event.BlindID,
	).Scan(&secretID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("secrets: resolve blind id %s: %w", event.BlindID, err)
	}

	switch event.Type {
	case EventDelete:
		if _, err := s.db.Conn.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, secretID); err != nil {
			return fmt.Errorf("secrets: apply delete %s: %w", secretID, err)
		}
		return nil

	case EventUpsert:
		if len(s.vaultKey) != 32 {
			return fmt.Errorf("secrets: %w: vault locked, cannot apply sync event", crypto.ErrNotInitialized)
		}
		plaintext, err := crypto.Decrypt(crypto.Envelope{Ciphertext: event.EncryptedData, IV: event.IV}, s.vaultKey)
		if err != nil {
			return fmt.Errorf("secrets: decrypt sync event: %w", err)
		}
		if crypto.SHA256Hex(plaintext) != event.Checksum {
			return fmt.Errorf("%w: event %s", ErrChecksumMismatch, event.ID)
		}

		env, err := crypto.Encrypt(plaintext, s.vaultKey)
		if err != nil {
			return fmt.Errorf("secrets: re-encrypt: %w", err)
		}
		if _, err := s.db.Conn.ExecContext(ctx,
			`UPDATE secrets SET encrypted_value = ?, iv = ?, updated_at = ? WHERE id = ?`,
			env.Ciphertext, env.IV, nowMillis(), secretID,
		); err != nil {
			return fmt.Errorf("secrets: apply upsert %s: %w", secretID, err)
		}
		return nil

	default:
		return fmt.Errorf("secrets: unknown sync event type %q", event.Type)
	}
}
