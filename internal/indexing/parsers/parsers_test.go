package parsers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFrontmatterParserExtractsBodyAndName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SKILL.md")
	content := "---\nname: git-helper\ndescription: helps with git\n---\n\nUse git status liberally.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := NewFrontmatterParser()
	if !p.CanParse(path) {
		t.Fatal("expected CanParse true for SKILL.md")
	}

	docs, err := p.Parse(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	if docs[0].Source != path {
		t.Errorf("expected source %q, got %q", path, docs[0].Source)
	}

	found := false
	for _, tag := range docs[0].Tags {
		if tag == "name:git-helper" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected name tag, got %v", docs[0].Tags)
	}
}

func TestFrontmatterParserIgnoresOtherFiles(t *testing.T) {
	p := NewFrontmatterParser()
	if p.CanParse("/tmp/README.md") {
		t.Error("expected CanParse false for non-frontmatter file")
	}
}

func TestSessionsParserExtractsTurns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	content := `{"role":"user","content":"how do I rotate keys?"}
{"role":"assistant","content":"use the recovery CLI"}
not json, should be skipped

`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := NewSessionsParser()
	if !p.CanParse(path) {
		t.Fatal("expected CanParse true for .jsonl")
	}

	docs, err := p.Parse(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Content != "how do I rotate keys?" {
		t.Errorf("unexpected content: %q", docs[0].Content)
	}
}
