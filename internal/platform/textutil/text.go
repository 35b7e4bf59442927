package textutil

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText normalises free text supplied by customers or staff: NFC form, markup stripped,
// control characters removed, whitespace collapsed and the result capped at limit runes.
func SanitizeText(value string, limit int) string {
	value = norm.NFC.String(value)
	value = html.UnescapeString(strictPolicy.Sanitize(value))
	value = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	value = strings.Join(strings.Fields(value), " ")
	if limit > 0 && utf8.RuneCountInString(value) > limit {
		runes := []rune(value)
		value = strings.TrimSpace(string(runes[:limit]))
	}
	return value
}

// OptionalText sanitises value and returns nil when nothing is left.
func OptionalText(value string, limit int) *string {
	cleaned := SanitizeText(value, limit)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
