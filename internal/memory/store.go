package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/crypto"
	"github.com/engramhq/engram/internal/dlp"
	"github.com/engramhq/engram/internal/storage"
	"github.com/engramhq/engram/internal/tracing"
)

var (
	ErrVectorDimMismatch = fmt.Errorf("memory: vector dimension mismatch")
	ErrChecksumMismatch  = fmt.Errorf("memory: checksum mismatch")
	ErrContentEmpty      = fmt.Errorf("memory: content must not be empty")
)

// Store is the Memory Store. All mutating calls are serialized through mu
// per the single-writer discipline in SPEC_FULL.md §5; the `max(sequence_num)
// + 1` read for sync-event append happens in the same transaction as the
// row mutation it accompanies.
type Store struct {
	db        *storage.DB
	sanitizer *dlp.Sanitizer
	vaultKey  []byte // used to envelope sync-event payloads
	mu        sync.Mutex
}

// New constructs a Memory Store. vaultKey encrypts the sanitized content
// carried by sync events; it may be updated later via SetVaultKey once the
// vault is unlocked.
func New(db *storage.DB, sanitizer *dlp.Sanitizer, vaultKey []byte) *Store {
	if sanitizer == nil {
		sanitizer = dlp.CachedDefault()
	}
	return &Store{db: db, sanitizer: sanitizer, vaultKey: vaultKey}
}

// SetVaultKey updates the key used to envelope sync-event payloads.
func (s *Store) SetVaultKey(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vaultKey = key
}

// Create sanitizes content, inserts the memory and its vector row in one
// transaction, and appends an ADD sync event.
func (s *Store) Create(ctx context.Context, in CreateInput, vector []float32) (m Memory, err error) {
	ctx, end := tracing.StartSpan(ctx, "memory.create")
	defer func() { end(err) }()

	if strings.TrimSpace(in.Content) == "" {
		return Memory{}, ErrContentEmpty
	}
	if len(vector) != s.db.VectorDim {
		return Memory{}, fmt.Errorf("%w: got %d want %d", ErrVectorDimMismatch, len(vector), s.db.VectorDim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.sanitizer.Sanitize(in.Content)
	tags := mergeTags(in.Tags, result.Detected)

	now := nowMillis()
	m = Memory{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Content:    result.Sanitized,
		Vector:     vector,
		Tags:       tags,
		Source:     in.Source,
		Confidence: in.Confidence,
		IsVerified: false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if m.Confidence == 0 {
		m.Confidence = 1.0
	}

	var tx *sql.Tx
	tx, err = s.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return Memory{}, fmt.Errorf("memory: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err = insertMemoryRow(ctx, tx, m); err != nil {
		return Memory{}, err
	}
	if err = upsertVectorRow(ctx, tx, m.ID, m.Vector); err != nil {
		return Memory{}, err
	}
	if err = s.appendSyncEventTx(ctx, tx, EventAdd, m.ID, m.Content); err != nil {
		return Memory{}, err
	}

	if err = tx.Commit(); err != nil {
		return Memory{}, fmt.Errorf("memory: commit: %w", err)
	}
	return m, nil
}

// Get fetches a memory by id. ok is false if no such memory exists.
func (s *Store) Get(ctx context.Context, id string) (Memory, bool, error) {
	row := s.db.Conn.QueryRowContext(ctx,
		`SELECT id, content, vector, tags, source, confidence, is_verified, created_at, updated_at
		 FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return Memory{}, false, nil
	}
	if err != nil {
		return Memory{}, false, fmt.Errorf("memory: get %s: %w", id, err)
	}
	return m, true, nil
}

// Update re-sanitizes any new content and writes the patch inside one
// transaction, appending a single UPDATE sync event.
func (s *Store) Update(ctx context.Context, id string, patch UpdatePatch, newVector []float32) (Memory, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok, err := s.getLocked(ctx, id)
	if err != nil || !ok {
		return Memory{}, ok, err
	}

	hadRedacted := containsTag(existing.Tags, dlpRedactedTag)
	updated := existing

	if patch.Content != nil {
		result := s.sanitizer.Sanitize(*patch.Content)
		updated.Content = result.Sanitized
		if patch.Tags != nil {
			updated.Tags = mergeTags(patch.Tags, result.Detected)
		} else if len(result.Detected) > 0 && !containsTag(updated.Tags, dlpRedactedTag) {
			updated.Tags = append(updated.Tags, dlpRedactedTag)
		}
	} else if patch.Tags != nil {
		updated.Tags = dedupeTags(patch.Tags)
		if hadRedacted && !containsTag(updated.Tags, dlpRedactedTag) {
			updated.Tags = append(updated.Tags, dlpRedactedTag)
		}
	}
	if patch.Source != nil {
		updated.Source = *patch.Source
	}
	if patch.Confidence != nil {
		updated.Confidence = *patch.Confidence
	}
	if patch.IsVerified != nil {
		updated.IsVerified = *patch.IsVerified
	}
	if newVector != nil {
		if len(newVector) != s.db.VectorDim {
			return Memory{}, false, fmt.Errorf("%w: got %d want %d", ErrVectorDimMismatch, len(newVector), s.db.VectorDim)
		}
		updated.Vector = newVector
	}
	updated.UpdatedAt = nowMillis()

	tx, err := s.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return Memory{}, false, fmt.Errorf("memory: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := updateMemoryRow(ctx, tx, updated); err != nil {
		return Memory{}, false, err
	}
	if newVector != nil {
		if err := upsertVectorRow(ctx, tx, updated.ID, updated.Vector); err != nil {
			return Memory{}, false, err
		}
	}
	if err := s.appendSyncEventTx(ctx, tx, EventUpdate, updated.ID, updated.Content); err != nil {
		return Memory{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return Memory{}, false, fmt.Errorf("memory: commit: %w", err)
	}
	return updated, true, nil
}

// Delete removes the memory and its vector row in one transaction. A
// DELETE sync event is appended only when a row was actually removed;
// re-deleting the same id is a no-op returning false.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, id)
}

func (s *Store) deleteLocked(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("memory: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("memory: delete: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_vec WHERE memory_id = ?`, id); err != nil {
		return false, fmt.Errorf("memory: delete vector row: %w", err)
	}
	if err := s.appendSyncEventTx(ctx, tx, EventDelete, id, ""); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("memory: commit: %w", err)
	}
	return true, nil
}

// List returns a reverse-chronological page, optionally filtered by exact
// source match.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Memory, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, content, vector, tags, source, confidence, is_verified, created_at, updated_at
	           FROM memories`
	args := []any{}
	if opts.Source != "" {
		query += ` WHERE source = ?`
		args = append(args, opts.Source)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: list: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the total number of stored memories.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

// DeleteOlderThan removes all memories created before ts (ms epoch) and
// returns the number removed. Vector rows and a DELETE sync event are
// emitted per removed memory to preserve journal invariants.
func (s *Store) DeleteOlderThan(ctx context.Context, ts int64) (int64, error) {
	rows, err := s.db.Conn.QueryContext(ctx, `SELECT id FROM memories WHERE created_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("memory: query old ids: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	var n int64
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		ok, err := s.deleteLocked(ctx, id)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) getLocked(ctx context.Context, id string) (Memory, bool, error) {
	row := s.db.Conn.QueryRowContext(ctx,
		`SELECT id, content, vector, tags, source, confidence, is_verified, created_at, updated_at
		 FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return Memory{}, false, nil
	}
	if err != nil {
		return Memory{}, false, err
	}
	return m, true, nil
}

// appendSyncEventTx appends a sync event for the given mutation inside tx,
// enveloping content under the vault key when present. It must run inside
// the same transaction as the row mutation it describes.
func (s *Store) appendSyncEventTx(ctx context.Context, tx *sql.Tx, typ EventType, memoryID, sanitizedContent string) error {
	var encryptedData, checksum string
	if typ != EventDelete {
		checksum = crypto.SHA256Hex([]byte(sanitizedContent))
		if len(s.vaultKey) == 32 {
			env, err := crypto.Encrypt([]byte(sanitizedContent), s.vaultKey)
			if err != nil {
				return fmt.Errorf("memory: envelope sync payload: %w", err)
			}
			encryptedData = encodeEnvelope(env)
		}
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(sequence_num) FROM sync_events`).Scan(&maxSeq); err != nil {
		return fmt.Errorf("memory: read max sequence: %w", err)
	}
	seq := int64(1)
	if maxSeq.Valid {
		seq = maxSeq.Int64 + 1
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO sync_events (id, event_type, memory_id, encrypted_data, checksum, timestamp, sequence_num)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.Must(uuid.NewV7()).String(), string(typ), memoryID, nullableString(encryptedData), nullableString(checksum), nowMillis(), seq,
	)
	if err != nil {
		return fmt.Errorf("memory: append sync event: %w", err)
	}
	return nil
}

func insertMemoryRow(ctx context.Context, tx *sql.Tx, m Memory) error {
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("memory: marshal tags: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, content, vector, tags, source, confidence, is_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Content, encodeVector(m.Vector), string(tagsJSON), nullableString(m.Source),
		m.Confidence, boolToInt(m.IsVerified), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("memory: insert: %w", err)
	}
	return nil
}

func updateMemoryRow(ctx context.Context, tx *sql.Tx, m Memory) error {
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("memory: marshal tags: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE memories SET content = ?, tags = ?, source = ?, confidence = ?, is_verified = ?, updated_at = ?
		 WHERE id = ?`,
		m.Content, string(tagsJSON), nullableString(m.Source), m.Confidence, boolToInt(m.IsVerified), m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("memory: update: %w", err)
	}
	return nil
}

func upsertVectorRow(ctx context.Context, tx *sql.Tx, memoryID string, vector []float32) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_vec WHERE memory_id = ?`, memoryID); err != nil {
		return fmt.Errorf("memory: clear vector row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories_vec (memory_id, embedding) VALUES (?, ?)`,
		memoryID, encodeVector(vector),
	); err != nil {
		return fmt.Errorf("memory: insert vector row: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (Memory, error) {
	var (
		m          Memory
		vectorBlob []byte
		tagsJSON   string
		source     sql.NullString
		isVerified int
	)
	if err := row.Scan(&m.ID, &m.Content, &vectorBlob, &tagsJSON, &source, &m.Confidence, &isVerified, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Memory{}, err
	}
	m.Vector = decodeVector(vectorBlob)
	m.Source = source.String
	m.IsVerified = isVerified != 0
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		m.Tags = nil
	}
	return m, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func encodeEnvelope(env crypto.Envelope) string {
	return env.Ciphertext + "|" + env.IV
}

func decodeEnvelope(s string) (crypto.Envelope, bool) {
	idx := strings.LastIndex(s, "|")
	if idx < 0 {
		return crypto.Envelope{}, false
	}
	return crypto.Envelope{Ciphertext: s[:idx], IV: s[idx+1:]}, true
}

func mergeTags(tags []string, detected map[string]bool) []string {
	out := dedupeTags(tags)
	if len(detected) > 0 && !containsTag(out, dlpRedactedTag) {
		out = append(out, dlpRedactedTag)
	}
	return out
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
