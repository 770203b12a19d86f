package parsers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/engramhq/engram/internal/indexing"
)

// sessionLine is the per-line shape SessionsParser reads: a top-level role
// plus a string content (or text) field; other fields are ignored. Lines
// that nest the turn inside another object (such as a message.content
// field) or carry non-string content yield no text and are skipped.
type sessionLine struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Text    string `json:"text"` // alternate field name used by some tools
}

// SessionsParser indexes one Memory per non-empty line of a JSONL session
// transcript, whatever its role, tagged with that role. Grounded on the teacher's plain encoding/json
// decode conventions (internal/http/*.go) — adapted here to streaming
// per-line decoding via bufio.Scanner since transcripts can be large.
type SessionsParser struct{}

func NewSessionsParser() *SessionsParser { return &SessionsParser{} }

func (p *SessionsParser) CanParse(path string) bool {
	return strings.HasSuffix(path, ".jsonl")
}

func (p *SessionsParser) Parse(path string) ([]indexing.ParsedDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sessions: open %s: %w", path, err)
	}
	defer f.Close()

	var docs []indexing.ParsedDocument
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry sessionLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // tolerate malformed lines in otherwise-valid transcripts
		}

		text := entry.Content
		if text == "" {
			text = entry.Text
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		docs = append(docs, indexing.ParsedDocument{
			Content: text,
			Tags:    []string{"session-index", roleTag(entry.Role)},
			Source:  fmt.Sprintf("%s#%d", path, lineNum),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sessions: scan %s: %w", path, err)
	}
	return docs, nil
}

func roleTag(role string) string {
	if role == "" {
		return "role:unknown"
	}
	return "role:" + role
}
