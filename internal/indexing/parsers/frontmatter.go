// Package parsers implements the Indexing Service's per-format file
// parsers (SPEC_FULL.md §4.5): YAML frontmatter documents (Skill/Agent/
// Command files) and JSONL session transcripts whose lines carry a
// top-level role and string content. Grounded on the teacher's internal/skills.Loader
// frontmatter handling, upgraded from its hand-rolled regexp-based
// parseSimpleYAML to gopkg.in/yaml.v3 — a dependency the teacher carries
// but never exercises in its own source tree.
package parsers

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/engramhq/engram/internal/indexing"
)

var frontmatterRe = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n?`)

// FrontmatterParser recognizes SKILL.md, AGENT.md, and COMMAND.md files
// carrying a YAML frontmatter block and indexes the body with the
// `description` field prepended to it; the `name` field becomes a
// `name:<name>` tag.
type FrontmatterParser struct {
	filenames map[string]bool
}

func NewFrontmatterParser() *FrontmatterParser {
	return &FrontmatterParser{
		filenames: map[string]bool{
			"SKILL.md":   true,
			"AGENT.md":   true,
			"COMMAND.md": true,
		},
	}
}

func (p *FrontmatterParser) CanParse(path string) bool {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	return p.filenames[base]
}

type frontmatterMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func (p *FrontmatterParser) Parse(path string) ([]indexing.ParsedDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: read %s: %w", path, err)
	}
	content := string(raw)

	match := frontmatterRe.FindStringSubmatch(content)
	body := frontmatterRe.ReplaceAllString(content, "")

	tags := []string{"frontmatter", "session-index"}
	if len(match) == 2 {
		var meta frontmatterMeta
		if err := yaml.Unmarshal([]byte(match[1]), &meta); err == nil {
			if meta.Name != "" {
				tags = append(tags, "name:"+meta.Name)
			}
			if meta.Description != "" {
				body = meta.Description + "\n\n" + body
			}
		}
	}

	return []indexing.ParsedDocument{{
		Content: strings.TrimSpace(body),
		Tags:    tags,
		Source:  path,
	}}, nil
}
