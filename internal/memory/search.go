package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Search runs a vector KNN lookup via the memories_vec virtual table,
// ordered by ascending cosine distance, grounded on the teacher's
// internal/memory/search.go HybridSearch query-construction pattern but
// adapted from paragraph chunks to atomic Memory rows.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int, opts SearchOptions) ([]SearchHit, error) {
	if len(queryVector) != s.db.VectorDim {
		return nil, fmt.Errorf("%w: got %d want %d", ErrVectorDimMismatch, len(queryVector), s.db.VectorDim)
	}
	if limit <= 0 {
		limit = 10
	}
	k := limit
	if opts.ProjectPath != "" {
		k = limit * 3
	}

	rows, err := s.db.Conn.QueryContext(ctx,
		`SELECT m.id, m.content, m.vector, m.tags, m.source, m.confidence, m.is_verified,
		        m.created_at, m.updated_at, v.distance
		 FROM memories_vec v
		 JOIN memories m ON m.id = v.memory_id
		 WHERE v.embedding MATCH ? AND k = ?
		 ORDER BY v.distance ASC`,
		encodeVector(queryVector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: vector search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			m          Memory
			vectorBlob []byte
			tagsJSON   string
			source     any
			isVerified int
			distance   float64
		)
		if err := rows.Scan(&m.ID, &m.Content, &vectorBlob, &tagsJSON, &source, &m.Confidence,
			&isVerified, &m.CreatedAt, &m.UpdatedAt, &distance); err != nil {
			return nil, fmt.Errorf("memory: scan hit: %w", err)
		}
		m.Vector = decodeVector(vectorBlob)
		m.IsVerified = isVerified != 0
		if s, ok := source.(string); ok {
			m.Source = s
		}
		unmarshalTagsInto(&m, tagsJSON)

		if opts.ProjectPath != "" && !memoryVisibleToProject(m, opts.ProjectPath) {
			continue
		}
		hits = append(hits, SearchHit{Memory: m, Distance: distance})
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, rows.Err()
}

// HybridSearch overfetches 2*limit vector candidates, then promotes hits
// whose content or any tag contains queryText (case-insensitive, matched as
// one substring) to the front while preserving the relative vector order
// of the remainder. Grounded on the teacher's (now superseded)
// internal/memory/search.go mergeResults weighting.
func (s *Store) HybridSearch(ctx context.Context, queryText string, queryVector []float32, limit int, opts SearchOptions) ([]SearchHit, error) {
	candidates, err := s.Search(ctx, queryVector, limit*2, opts)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(queryText))
	if needle == "" {
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}
		return candidates, nil
	}

	var keyword, rest []SearchHit
	for _, h := range candidates {
		matched := strings.Contains(strings.ToLower(h.Memory.Content), needle)
		for _, tag := range h.Memory.Tags {
			matched = matched || strings.Contains(strings.ToLower(tag), needle)
		}
		if matched {
			keyword = append(keyword, h)
		} else {
			rest = append(rest, h)
		}
	}
	merged := append(keyword, rest...)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// memoryVisibleToProject applies the project-scoping rule from
// SPEC_FULL.md §4.3: a memory whose source contains /.claude/plugins/ is
// always visible; a memory whose source has the form {X}/.claude/... is
// visible only when X equals projectPath; a memory with no source or any
// other source is always visible.
func memoryVisibleToProject(m Memory, projectPath string) bool {
	if m.Source == "" || strings.Contains(m.Source, "/.claude/plugins/") {
		return true
	}
	idx := strings.Index(m.Source, "/.claude/")
	if idx < 0 {
		return true
	}
	return m.Source[:idx] == projectPath
}

func unmarshalTagsInto(m *Memory, tagsJSON string) {
	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err == nil {
		m.Tags = tags
	}
}
