package web

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxNameLen = 64
	maxBodyLen = 10000
)

// Everything user-typed is stored as plain text; templates do the
// escaping on the way out. The strict policy strips any markup smuggled
// in, on top of control-character removal.
var textPolicy = bluemonday.StrictPolicy()

// stripControl removes control runes while preserving emojis, CJK and
// other printable Unicode. Tabs and newlines survive.
func stripControl(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' {
			continue
		}
		if r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if runes := []rune(out); len(runes) > maxLen {
		out = string(runes[:maxLen])
	}
	return strings.TrimSpace(out)
}

// cleanName prepares a contact name for storage.
func cleanName(name string) string {
	decoded := html.UnescapeString(name)
	return stripControl(html.UnescapeString(textPolicy.Sanitize(decoded)), maxNameLen)
}

// cleanBody prepares message text for storage.
func cleanBody(body string) string {
	decoded := html.UnescapeString(body)
	return stripControl(html.UnescapeString(textPolicy.Sanitize(decoded)), maxBodyLen)
}
