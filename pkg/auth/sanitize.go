package auth

import (
	"strings"
	"unicode"
)

const maxNameLength = 100

// SanitizeName normalizes a display name: control characters are removed,
// whitespace runs become a single space and the result is capped at
// maxNameLength runes. Names are stored as plain text; escaping is left to
// whatever renders them.
func SanitizeName(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	name = strings.Join(fields, " ")

	if runes := []rune(name); len(runes) > maxNameLength {
		name = strings.TrimSpace(string(runes[:maxNameLength]))
	}
	return name
}
