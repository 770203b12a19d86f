package dlp

import (
	"strings"
	"testing"
)

func TestSanitizeEmptyInput(t *testing.T) {
	r := Default().Sanitize("")
	if r.Sanitized != "" || len(r.Detected) != 0 {
		t.Errorf("expected empty result for empty input, got %+v", r)
	}
}

func TestSanitizeOpenAIKey(t *testing.T) {
	key := "sk-" + strings.Repeat("a", 48)
	text := "My OpenAI key is " + key + " and I use it daily"

	r := Default().Sanitize(text)

	if strings.Contains(r.Sanitized, key) {
		t.Errorf("raw key leaked into sanitized output: %q", r.Sanitized)
	}
	if !r.Detected["OPENAI_KEY"] {
		t.Errorf("expected OPENAI_KEY to be detected, got %+v", r.Detected)
	}
	if !strings.Contains(r.Sanitized, "{{SECRET:OPENAI_KEY}}") {
		t.Errorf("expected placeholder in output, got %q", r.Sanitized)
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	key := "sk-ant-" + strings.Repeat("b", 30)
	first := Default().Sanitize("token: " + key)
	second := Default().Sanitize(first.Sanitized)

	if second.Sanitized != first.Sanitized {
		t.Errorf("expected idempotent output, got %q then %q", first.Sanitized, second.Sanitized)
	}
	if len(second.Detected) != 0 {
		t.Errorf("expected no further detections on already-sanitized text, got %+v", second.Detected)
	}
}

func TestSanitizeNoMatchLeavesTextUntouched(t *testing.T) {
	text := "this is a perfectly ordinary sentence about memory safety"
	r := Default().Sanitize(text)
	if r.Sanitized != text {
		t.Errorf("expected text unchanged, got %q", r.Sanitized)
	}
	if len(r.Detected) != 0 {
		t.Errorf("expected no detections, got %+v", r.Detected)
	}
}
