// Package memory implements the Memory Store: CRUD and vector/hybrid
// search over memory records, DLP invocation, vector-index dual-write,
// tombstoning, and sync journal emission (SPEC_FULL.md §4.3).
package memory

// Memory is a single stored fact, always DLP-sanitized before persistence.
type Memory struct {
	ID         string
	Content    string
	Vector     []float32
	Tags       []string
	Source     string
	Confidence float64
	IsVerified bool
	CreatedAt  int64
	UpdatedAt  int64
}

// CreateInput is the caller-supplied payload for Create.
type CreateInput struct {
	Content    string
	Tags       []string
	Source     string
	Confidence float64
}

// UpdatePatch carries only the fields a caller wants to change; nil/zero
// fields are left untouched except where noted.
type UpdatePatch struct {
	Content    *string
	Tags       []string
	Source     *string
	Confidence *float64
	IsVerified *bool
}

// SearchHit pairs a Memory with its vector distance from the query.
type SearchHit struct {
	Memory   Memory
	Distance float64
}

// SearchOptions scopes a vector/hybrid search.
type SearchOptions struct {
	ProjectPath string
}

// ListOptions scopes a plain listing.
type ListOptions struct {
	Limit  int
	Offset int
	Source string
}

// EventType enumerates sync event kinds.
type EventType string

const (
	EventAdd    EventType = "ADD"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// SyncEvent is one append-only journal row.
type SyncEvent struct {
	ID            string
	Type          EventType
	MemoryID      string
	EncryptedData string // "" for DELETE
	Checksum      string // "" for DELETE
	Timestamp     int64
	SequenceNum   int64
}

const dlpRedactedTag = "dlp-redacted"

// sessionIndexTag marks memories produced by the Indexing Service.
const sessionIndexTag = "session-index"
