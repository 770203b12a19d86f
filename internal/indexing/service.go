package indexing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/engramhq/engram/internal/crypto"
	"github.com/engramhq/engram/internal/dlp"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/memory"
	"github.com/engramhq/engram/internal/storage"
	"github.com/engramhq/engram/internal/tracing"
)

const embeddingCacheSize = 2048

// Service runs the ingest_file pipeline: parse → embed → store, with
// dedupe-by-source against previously indexed Memory rows and an LRU
// embedding cache keyed by content hash to avoid re-embedding unchanged
// documents, grounded on the teacher's embedding_cache table and the
// store.EmbeddingProvider boundary it sits behind.
type Service struct {
	db       *storage.DB
	memories *memory.Store
	embedder embedding.Embedder
	parsers  []Parser
	ring     *progressRing
	cache    *lru.Cache[string, []float32]
}

func New(db *storage.DB, memories *memory.Store, embedder embedding.Embedder, parsers []Parser) (*Service, error) {
	cache, err := lru.New[string, []float32](embeddingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("indexing: new lru cache: %w", err)
	}
	return &Service{
		db:       db,
		memories: memories,
		embedder: embedder,
		parsers:  parsers,
		ring:     newProgressRing(db),
		cache:    cache,
	}, nil
}

// RecentEvents returns the bounded progress ring's current contents.
func (s *Service) RecentEvents() []ProgressEvent {
	return s.ring.Recent()
}

// IngestFile runs one file through parse → embed → store, emitting a
// ProgressEvent at each pipeline stage.
func (s *Service) IngestFile(ctx context.Context, path string) (err error) {
	ctx, end := tracing.StartSpan(ctx, "indexing.ingest_file")
	defer func() { end(err) }()

	s.emit(ctx, path, StateStart, "")

	parser := s.findParser(path)
	if parser == nil {
		s.emit(ctx, path, StateSkipped, "no parser for file type")
		return nil
	}

	docs, err := parser.Parse(path)
	if err != nil {
		s.emit(ctx, path, StateError, err.Error())
		return fmt.Errorf("indexing: parse %s: %w", path, err)
	}
	if len(docs) == 0 {
		s.emit(ctx, path, StateSkipped, "parser produced no documents")
		return nil
	}
	s.emit(ctx, path, StateParsed, fmt.Sprintf("%d document(s)", len(docs)))

	for _, doc := range docs {
		if err := s.ingestDocument(ctx, path, doc); err != nil {
			s.emit(ctx, path, StateError, err.Error())
			return err
		}
	}
	return nil
}

func (s *Service) ingestDocument(ctx context.Context, path string, doc ParsedDocument) error {
	if isDuplicateSource(ctx, s.db, doc.Source) {
		s.emit(ctx, path, StateSkipped, "already indexed for source "+doc.Source)
		return nil
	}

	vector, err := s.embed(ctx, dlp.CachedDefault().Sanitize(doc.Content).Sanitized)
	if err != nil {
		return fmt.Errorf("indexing: embed: %w", err)
	}
	s.emit(ctx, path, StateEmbedded, "")

	_, err = s.memories.Create(ctx, memory.CreateInput{
		Content: doc.Content,
		Tags:    doc.Tags,
		Source:  doc.Source,
	}, vector)
	if err != nil {
		return fmt.Errorf("indexing: store: %w", err)
	}
	s.emit(ctx, path, StateStored, "")
	return nil
}

func (s *Service) embed(ctx context.Context, content string) ([]float32, error) {
	hash := crypto.SHA256Hex([]byte(content))
	if cached, ok := s.cache.Get(hash); ok {
		return cached, nil
	}
	if v, ok, err := s.loadCachedEmbedding(ctx, hash); err == nil && ok {
		s.cache.Add(hash, v)
		return v, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{content})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("indexing: embedder returned no vectors")
	}
	vector := vectors[0]
	s.cache.Add(hash, vector)
	s.storeCachedEmbedding(ctx, hash, vector)
	return vector, nil
}

func (s *Service) loadCachedEmbedding(ctx context.Context, hash string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.Conn.QueryRowContext(ctx, `SELECT embedding FROM embedding_cache WHERE content_hash = ?`, hash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeFloat32Blob(blob), true, nil
}

func (s *Service) storeCachedEmbedding(ctx context.Context, hash string, vector []float32) {
	_, _ = s.db.Conn.ExecContext(ctx,
		`INSERT INTO embedding_cache (content_hash, embedding, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(content_hash) DO NOTHING`,
		hash, encodeFloat32Blob(vector), time.Now().UnixMilli(),
	)
}

func (s *Service) findParser(path string) Parser {
	for _, p := range s.parsers {
		if p.CanParse(path) {
			return p
		}
	}
	return nil
}

func (s *Service) emit(ctx context.Context, path string, state EventState, detail string) {
	s.ring.push(ctx, ProgressEvent{Path: path, State: state, Detail: detail, Timestamp: time.Now().UnixMilli()})
}

func isDuplicateSource(ctx context.Context, db *storage.DB, source string) bool {
	if source == "" {
		return false
	}
	var n int
	err := db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE source = ?`, source).Scan(&n)
	return err == nil && n > 0
}
