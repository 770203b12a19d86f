package dlp

import "regexp"

// Pattern is one labeled credential-detection rule. Patterns are evaluated
// in slice order; more specific formats are registered ahead of generic
// catch-alls so a specific label wins over a generic one when both could
// plausibly match the same substring (SPEC_FULL.md §9, ambiguity (c)).
type Pattern struct {
	Label string
	Regex *regexp.Regexp
}

// DefaultPatterns is the built-in credential pattern set, grounded on the
// teacher's internal/tools/scrub.go credentialPatterns, extended with
// per-pattern labels and the additional formats SPEC_FULL.md §4.2 requires.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{"ANTHROPIC_KEY", regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{20,}`)},
		{"OPENAI_PROJECT_KEY", regexp.MustCompile(`sk-proj-[a-zA-Z0-9_-]{20,}`)},
		{"OPENAI_KEY", regexp.MustCompile(`sk-[a-zA-Z0-9]{48}`)},
		{"GITHUB_FINE_GRAINED_PAT", regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{20,}`)},
		{"GITHUB_TOKEN", regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`)},
		{"STRIPE_LIVE_KEY", regexp.MustCompile(`[sr]k_live_[a-zA-Z0-9]{16,}`)},
		{"AWS_ACCESS_KEY", regexp.MustCompile(`AKIA[A-Z0-9]{16}`)},
		{"SLACK_TOKEN", regexp.MustCompile(`xox[baprs]-[a-zA-Z0-9-]{10,}`)},
		{"GOOGLE_API_KEY", regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`)},
		{"PEM_PRIVATE_KEY", regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)},
		{"DB_URL", regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s:@/]+:[^\s:@/]+@[^\s/]+`)},
		{"BEARER_TOKEN", regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{16,}`)},
		{"API_KEY_GENERIC", regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|authorization)\s*[:=]\s*["']?\S{8,}["']?`)},
	}
}
