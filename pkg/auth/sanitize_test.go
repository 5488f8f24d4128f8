package auth

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Jane Doe", "Jane Doe"},
		{"trimmed", "  Jane  ", "Jane"},
		{"inner whitespace collapsed", "Jane \t\n Doe", "Jane Doe"},
		{"control characters dropped", "Ja\x00ne\x1b Doe", "Ja ne Doe"},
		{"unicode kept", "José Müller", "José Müller"},
		{"markup left as text", "<b>Bob</b>", "<b>Bob</b>"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.input); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeName_Truncates(t *testing.T) {
	got := SanitizeName(strings.Repeat("é", maxNameLength+20))
	if n := utf8.RuneCountInString(got); n != maxNameLength {
		t.Errorf("rune count = %d, want %d", n, maxNameLength)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
}
