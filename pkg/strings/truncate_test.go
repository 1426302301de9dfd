package strings

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short value unchanged", input: "openid profile", maxLen: 48, want: "openid profile"},
		{name: "exact length unchanged", input: "abcd", maxLen: 4, want: "abcd"},
		{name: "long value cut", input: "openid profile email offline_access", maxLen: 20, want: "openid profile em..."},
		{name: "whitespace collapsed", input: "openid\n\tprofile   email", maxLen: 48, want: "openid profile email"},
		{name: "tiny max clamped", input: "abcdefgh", maxLen: 1, want: "a..."},
		{name: "runes not split", input: "ünïcödé-scope", maxLen: 8, want: "ünïcö..."},
		{name: "empty", input: "", maxLen: 10, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
