// Package sanitize scrubs inbound sender text before it reaches any model
// prompt, and validates externally supplied identifiers.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxTextLength = 10000

// Prompt-injection phrasings get blanked, not rejected: the reply pipeline
// must keep the sender talking even when they probe for automation.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|above|prior)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all)\s+(you\s+)?(know|learned)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+in\s+(debug|developer|admin)\s+mode`),
	regexp.MustCompile(`(?i)system\s*:\s*`),
	regexp.MustCompile(`(?i)\[INST\]|\[/INST\]`),
	regexp.MustCompile(`<\|[a-z_]+\|>`),
	regexp.MustCompile(`(?i)repeat\s+(after|this)\s*:`),
}

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

var spaceCollapse = regexp.MustCompile(`\s{2,}`)

// Truncate caps s at limit bytes without splitting a multi-byte rune, so
// truncated text stays valid UTF-8 for prompts and JSON.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// Text truncates and neutralizes prompt-injection phrasing in sender text.
func Text(s string) string {
	s = Truncate(s, maxTextLength)
	for _, p := range injectionPatterns {
		s = p.ReplaceAllString(s, " ")
	}
	s = spaceCollapse.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ValidSessionID reports whether an externally supplied session id is safe
// to use as a store key.
func ValidSessionID(id string) bool {
	return id != "" && len(id) <= 128 && sessionIDPattern.MatchString(id)
}
