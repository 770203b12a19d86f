// Package indexing implements the Indexing Service: pluggable per-format
// parsers that turn changed files into Memory records, a bounded
// in-memory progress ring mirrored best-effort into the indexing_events
// table, and an LRU embedding cache (SPEC_FULL.md §4.5). Grounded on the
// teacher's internal/skills.Loader hierarchy-and-cache shape and its
// regexp-based frontmatter handling, generalized here to a pluggable
// Parser interface covering session transcripts as well as frontmatter
// documents.
package indexing

// ParsedDocument is a single unit a Parser extracts from a file, destined
// for one Memory record.
type ParsedDocument struct {
	Content string
	Tags    []string
	Source  string // stable identifier for dedupe-by-source
}

// Parser recognizes and extracts content from one file format.
type Parser interface {
	// CanParse reports whether this parser should handle path.
	CanParse(path string) bool
	// Parse extracts zero or more documents from the file at path.
	Parse(path string) ([]ParsedDocument, error)
}

// EventState enumerates the ingest_file pipeline's state machine
// (SPEC_FULL.md §4.9).
type EventState string

const (
	StateStart    EventState = "start"
	StateParsed   EventState = "parsed"
	StateEmbedded EventState = "embedded"
	StateStored   EventState = "stored"
	StateSkipped  EventState = "skipped"
	StateError    EventState = "error"
)

// ProgressEvent is one step of the ingest_file pipeline, retained in a
// bounded ring read through Service.RecentEvents and persisted best-effort.
type ProgressEvent struct {
	Path      string
	State     EventState
	Detail    string
	Timestamp int64
}
