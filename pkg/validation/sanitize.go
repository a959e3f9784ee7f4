package validation

import (
	"strings"
	"unicode"
)

// Line trims a single-line field and removes control characters.
func Line(s string) string {
	return strings.TrimSpace(removeControlChars(s, false))
}

// Text trims a free-text field and removes control characters except
// newline, carriage return and tab.
func Text(s string) string {
	return strings.TrimSpace(removeControlChars(s, true))
}

// LinePtr applies Line to a non-nil value.
func LinePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Line(*s)
	return &v
}

// TextPtr applies Text to a non-nil value.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Text(*s)
	return &v
}

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(Line(s))
}

// EmailPtr applies Email to a non-nil value.
func EmailPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Email(*s)
	return &v
}

func removeControlChars(s string, keepLineBreaks bool) string {
	return strings.Map(func(r rune) rune {
		if keepLineBreaks && (r == '\n' || r == '\r' || r == '\t') {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
