// Package dlp implements the data-loss-prevention sanitization pass that
// runs before any text is embedded or persisted by the Memory Store,
// replacing matched credentials with {{SECRET:<LABEL>}} placeholders.
package dlp

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Result is the outcome of a Sanitize call.
type Result struct {
	Sanitized string
	Detected  map[string]bool // pattern labels that fired
}

// Sanitizer owns an ordered pattern list and redacts matches in place.
type Sanitizer struct {
	patterns []Pattern
}

// New builds a Sanitizer from the given patterns, preserving order.
func New(patterns []Pattern) *Sanitizer {
	return &Sanitizer{patterns: patterns}
}

// Default returns a Sanitizer built from DefaultPatterns.
func Default() *Sanitizer {
	return New(DefaultPatterns())
}

// WithExtraPatterns returns a new Sanitizer with additional patterns
// appended after the built-ins, preserving the built-ins' relative order
// (SPEC_FULL.md §4.2: "custom patterns may be appended; ordering is
// preserved").
func (s *Sanitizer) WithExtraPatterns(extra ...Pattern) *Sanitizer {
	combined := make([]Pattern, 0, len(s.patterns)+len(extra))
	combined = append(combined, s.patterns...)
	combined = append(combined, extra...)
	return New(combined)
}

// Sanitize rewrites text, replacing every match of every pattern (in
// registration order) with {{SECRET:<LABEL>}}, and reports which pattern
// labels fired. Sanitizing an already-sanitized string is idempotent:
// placeholders (existing ones and those inserted by earlier patterns) are
// masked while the patterns run, so a second pass returns the same text
// with an empty detected set.
func (s *Sanitizer) Sanitize(text string) Result {
	detected := make(map[string]bool)
	if text == "" {
		return Result{Sanitized: "", Detected: detected}
	}

	const prefix, masked = "{{SECRET:", "{{\x00:"
	text = strings.ReplaceAll(text, prefix, masked)
	for _, p := range s.patterns {
		if !p.Regex.MatchString(text) {
			continue
		}
		detected[p.Label] = true
		placeholder := fmt.Sprintf("%s%s}}", masked, p.Label)
		text = p.Regex.ReplaceAllString(text, placeholder)
	}
	text = strings.ReplaceAll(text, masked, prefix)

	return Result{Sanitized: text, Detected: detected}
}

// patternCache memoizes compiled pattern sets keyed by a version tag, so
// repeated Sanitizer construction (one per Memory Store call) does not
// re-run regexp.MustCompile for the built-in set every time. Grounded on
// the teacher's embedding_cache pattern (internal/memory/sqlite.go) applied
// here to compiled regular expressions instead of embedding vectors.
var patternCache, _ = lru.New[string, []Pattern](4)

// CachedDefault returns the default pattern set via a small process-wide
// LRU cache instead of recompiling every call site.
func CachedDefault() *Sanitizer {
	const version = "builtin-v1"
	if cached, ok := patternCache.Get(version); ok {
		return New(cached)
	}
	patterns := DefaultPatterns()
	patternCache.Add(version, patterns)
	return New(patterns)
}
