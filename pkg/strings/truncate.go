// Package strings holds small text helpers for CLI output.
package strings

import (
	"strings"
)

// DefaultColumnWidth is the widest a free-text table cell gets in CLI output.
const DefaultColumnWidth = 48

// MinTruncateLen is the smallest maxLen Truncate honors; there has to be room
// for one character plus "...".
const MinTruncateLen = 4

// Truncate collapses whitespace to single spaces so the value stays on one
// line, then cuts it to maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
