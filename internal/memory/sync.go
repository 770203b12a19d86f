package memory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/engramhq/engram/internal/crypto"
)

// ApplyEncryptedSyncEvent applies a remote sync event to the local store.
// Checksum verification happens before any write; a mismatch is fatal for
// that event only (SPEC_FULL.md §4.10) and does not affect prior or later
// events. Applying an UPDATE for an id that no longer exists locally
// (already tombstoned) is a no-op rather than an error, per SPEC_FULL.md
// §9 Decision (b).
func (s *Store) ApplyEncryptedSyncEvent(ctx context.Context, event SyncEvent, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Type {
	case EventDelete:
		_, err := s.deleteLocked(ctx, event.MemoryID)
		return err

	case EventAdd, EventUpdate:
		plaintext, err := s.decryptAndVerify(event)
		if err != nil {
			return err
		}

		existing, ok, err := s.getLocked(ctx, event.MemoryID)
		if err != nil {
			return err
		}
		if event.Type == EventUpdate && !ok {
			return nil // tombstoned locally; nothing to update
		}

		now := nowMillis()
		m := Memory{
			ID:         event.MemoryID,
			Content:    string(plaintext),
			Vector:     vector,
			Tags:       existing.Tags,
			Source:     existing.Source,
			Confidence: existing.Confidence,
			IsVerified: existing.IsVerified,
			CreatedAt:  existing.CreatedAt,
			UpdatedAt:  now,
		}
		if !ok {
			m.CreatedAt = now
			if m.Confidence == 0 {
				m.Confidence = 1.0
			}
		}
		if vector == nil {
			m.Vector = existing.Vector
		}

		tx, err := s.db.Conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("memory: begin tx: %w", err)
		}
		defer tx.Rollback()

		if ok {
			if err := updateMemoryRow(ctx, tx, m); err != nil {
				return err
			}
		} else {
			if err := insertMemoryRow(ctx, tx, m); err != nil {
				return err
			}
		}
		if vector != nil {
			if err := upsertVectorRow(ctx, tx, m.ID, m.Vector); err != nil {
				return err
			}
		}
		return tx.Commit()

	default:
		return fmt.Errorf("memory: unknown sync event type %q", event.Type)
	}
}

func (s *Store) decryptAndVerify(event SyncEvent) ([]byte, error) {
	if len(s.vaultKey) != 32 {
		return nil, fmt.Errorf("memory: %w: vault locked, cannot apply sync event", crypto.ErrNotInitialized)
	}
	env, ok := decodeEnvelope(event.EncryptedData)
	if !ok {
		return nil, fmt.Errorf("memory: %w: malformed envelope", crypto.ErrFormat)
	}
	plaintext, err := crypto.Decrypt(env, s.vaultKey)
	if err != nil {
		return nil, fmt.Errorf("memory: decrypt sync event: %w", err)
	}
	if crypto.SHA256Hex(plaintext) != event.Checksum {
		return nil, fmt.Errorf("%w: event %s", ErrChecksumMismatch, event.ID)
	}
	return plaintext, nil
}

// GetSyncEventsSince returns up to limit events with sequence_num > seq,
// in ascending sequence order, for the push side of the memory sync
// engine to upload.
func (s *Store) GetSyncEventsSince(ctx context.Context, seq int64, limit int) ([]SyncEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Conn.QueryContext(ctx,
		`SELECT id, event_type, memory_id, encrypted_data, checksum, timestamp, sequence_num
		 FROM sync_events WHERE sequence_num > ? ORDER BY sequence_num ASC LIMIT ?`,
		seq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: get sync events since %d: %w", seq, err)
	}
	defer rows.Close()

	var events []SyncEvent
	for rows.Next() {
		var (
			e             SyncEvent
			encryptedData sql.NullString
			checksum      sql.NullString
			typ           string
		)
		if err := rows.Scan(&e.ID, &typ, &e.MemoryID, &encryptedData, &checksum, &e.Timestamp, &e.SequenceNum); err != nil {
			return nil, fmt.Errorf("memory: scan sync event: %w", err)
		}
		e.Type = EventType(typ)
		e.EncryptedData = encryptedData.String
		e.Checksum = checksum.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// LatestSequenceNum returns the highest sequence_num recorded, or 0 if the
// journal is empty.
func (s *Store) LatestSequenceNum(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.Conn.QueryRowContext(ctx, `SELECT MAX(sequence_num) FROM sync_events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("memory: latest sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
