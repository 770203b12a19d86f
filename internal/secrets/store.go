package secrets

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/crypto"
	"github.com/engramhq/engram/internal/storage"
	"github.com/engramhq/engram/internal/tracing"
)

// Store is the Secrets Store. Get/Set/Delete/List mirror the shape of the
// teacher's store.ConfigSecretsStore interface, adapted to envelope
// encryption and blind-indexed sync events instead of a single shared
// encryption key.
type Store struct {
	db       *storage.DB
	vaultKey []byte
	blindKey []byte
	engine   Engine // nil until a sync engine is configured
	mu       sync.Mutex
}

func New(db *storage.DB, vaultKey, blindKey []byte) *Store {
	return &Store{db: db, vaultKey: vaultKey, blindKey: blindKey}
}

// SetEngine wires an optional sync engine. Set and Delete push each event
// to it after the local write and its journal entry have committed, not
// before.
func (s *Store) SetEngine(engine Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
}

func (s *Store) SetKeys(vaultKey, blindKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vaultKey = vaultKey
	s.blindKey = blindKey
}

// Set upserts a secret by key_name, writes a local sync event, and — if a
// sync engine is configured — pushes the event. An empty description keeps
// the existing one. A remote push failure is logged, not rolled back: the
// local write is authoritative.
func (s *Store) Set(ctx context.Context, in SetInput) (secret Secret, err error) {
	ctx, end := tracing.StartSpan(ctx, "secrets.set")
	defer func() { end(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.vaultKey) != 32 {
		return Secret{}, fmt.Errorf("secrets: %w", crypto.ErrNotInitialized)
	}

	env, err := crypto.Encrypt([]byte(in.Value), s.vaultKey)
	if err != nil {
		return Secret{}, fmt.Errorf("secrets: encrypt: %w", err)
	}

	now := nowMillis()
	existing, ok, err := s.getByKeyLocked(ctx, in.KeyName)
	if err != nil {
		return Secret{}, err
	}

	sec := Secret{
		ID:          existing.ID,
		KeyName:     in.KeyName,
		Value:       in.Value,
		Description: in.Description,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   now,
	}
	if !ok {
		sec.ID = uuid.Must(uuid.NewV7()).String()
		sec.CreatedAt = now
	} else if sec.Description == "" {
		sec.Description = existing.Description
	}

	tx, err := s.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return Secret{}, fmt.Errorf("secrets: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO secrets (id, key_name, encrypted_value, iv, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key_name) DO UPDATE SET
		   encrypted_value = excluded.encrypted_value,
		   iv = excluded.iv,
		   description = COALESCE(excluded.description, secrets.description),
		   updated_at = excluded.updated_at`,
		sec.ID, sec.KeyName, env.Ciphertext, env.IV, nullableString(sec.Description), sec.CreatedAt, sec.UpdatedAt,
	); err != nil {
		return Secret{}, fmt.Errorf("secrets: upsert: %w", err)
	}

	blindID := crypto.BlindIndex(s.blindKey, sec.KeyName)
	event, err := s.appendSyncEventTx(ctx, tx, EventUpsert, sec.ID, blindID, env, crypto.SHA256Hex([]byte(in.Value)))
	if err != nil {
		return Secret{}, err
	}

	if err := tx.Commit(); err != nil {
		return Secret{}, fmt.Errorf("secrets: commit: %w", err)
	}

	s.pushIfConfigured(sec.KeyName, event)
	return sec, nil
}

// Get returns the decrypted value for key_name.
func (s *Store) Get(ctx context.Context, keyName string) (Secret, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getByKeyLocked(ctx, keyName)
}

func (s *Store) getByKeyLocked(ctx context.Context, keyName string) (Secret, bool, error) {
	var (
		sec         Secret
		ciphertext  string
		iv          string
		description sql.NullString
	)
	err := s.db.Conn.QueryRowContext(ctx,
		`SELECT id, key_name, encrypted_value, iv, description, created_at, updated_at
		 FROM secrets WHERE key_name = ?`, keyName,
	).Scan(&sec.ID, &sec.KeyName, &ciphertext, &iv, &description, &sec.CreatedAt, &sec.UpdatedAt)
	if err == sql.ErrNoRows {
		return Secret{}, false, nil
	}
	if err != nil {
		return Secret{}, false, fmt.Errorf("secrets: get %s: %w", keyName, err)
	}
	sec.Description = description.String

	if len(s.vaultKey) == 32 {
		plaintext, err := crypto.Decrypt(crypto.Envelope{Ciphertext: ciphertext, IV: iv}, s.vaultKey)
		if err != nil {
			return Secret{}, false, fmt.Errorf("secrets: decrypt %s: %w", keyName, err)
		}
		sec.Value = string(plaintext)
	}
	return sec, true, nil
}

// List returns all secrets sorted alphabetically by key_name. Values are
// decrypted only if the vault is unlocked.
func (s *Store) List(ctx context.Context) ([]Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Conn.QueryContext(ctx,
		`SELECT id, key_name, encrypted_value, iv, description, created_at, updated_at FROM secrets`)
	if err != nil {
		return nil, fmt.Errorf("secrets: list: %w", err)
	}
	defer rows.Close()

	var out []Secret
	for rows.Next() {
		var (
			sec         Secret
			ciphertext  string
			iv          string
			description sql.NullString
		)
		if err := rows.Scan(&sec.ID, &sec.KeyName, &ciphertext, &iv, &description, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("secrets: scan: %w", err)
		}
		sec.Description = description.String
		if len(s.vaultKey) == 32 {
			plaintext, err := crypto.Decrypt(crypto.Envelope{Ciphertext: ciphertext, IV: iv}, s.vaultKey)
			if err == nil {
				sec.Value = string(plaintext)
			}
		}
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyName < out[j].KeyName })
	return out, rows.Err()
}

// Delete removes a secret by key_name and appends a DELETE sync event.
func (s *Store) Delete(ctx context.Context, keyName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok, err := s.getByKeyLocked(ctx, keyName)
	if err != nil || !ok {
		return false, err
	}

	tx, err := s.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("secrets: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM secrets WHERE key_name = ?`, keyName); err != nil {
		return false, fmt.Errorf("secrets: delete: %w", err)
	}

	blindID := crypto.BlindIndex(s.blindKey, keyName)
	event, err := s.appendSyncEventTx(ctx, tx, EventDelete, existing.ID, blindID, crypto.Envelope{}, "")
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("secrets: commit: %w", err)
	}

	s.pushIfConfigured(keyName, event)
	return true, nil
}

func (s *Store) appendSyncEventTx(ctx context.Context, tx *sql.Tx, typ EventType, secretID, blindID string, env crypto.Envelope, checksum string) (SyncEvent, error) {
	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(sequence_num) FROM local_secret_sync_events`).Scan(&maxSeq); err != nil {
		return SyncEvent{}, fmt.Errorf("secrets: read max sequence: %w", err)
	}
	seq := int64(1)
	if maxSeq.Valid {
		seq = maxSeq.Int64 + 1
	}

	event := SyncEvent{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Type:          typ,
		SecretID:      secretID,
		EncryptedData: env.Ciphertext,
		IV:            env.IV,
		Checksum:      checksum,
		BlindID:       blindID,
		Timestamp:     nowMillis(),
		SequenceNum:   seq,
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO local_secret_sync_events
		   (id, event_type, secret_id, encrypted_data, iv, checksum, blind_id, timestamp, sequence_num)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Type), event.SecretID, nullableString(event.EncryptedData),
		nullableString(event.IV), nullableString(event.Checksum), event.BlindID, event.Timestamp, event.SequenceNum,
	)
	if err != nil {
		return SyncEvent{}, fmt.Errorf("secrets: append sync event: %w", err)
	}
	return event, nil
}

func (s *Store) pushIfConfigured(keyName string, event SyncEvent) {
	if s.engine == nil {
		return
	}
	if err := s.engine.PushSecret(keyName, event); err != nil {
		slog.Warn("secrets: push to sync engine failed", "key", keyName, "error", err)
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
