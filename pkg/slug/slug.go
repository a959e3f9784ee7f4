// Package slug turns display names into URL-safe identifiers and finds a
// free one when the natural slug is taken.
package slug

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/tendant/agencyhub/pkg/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLength is the longest slug produced.
	MaxLength = 50
	// MaxAttempts bounds the collision retry loop.
	MaxAttempts = 10

	fallback = "item"
)

// Make lowercases name, folds accented letters to ASCII, replaces every run
// of other characters with a single hyphen and trims to MaxLength.
func Make(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	s := truncate(b.String(), MaxLength)
	if s == "" {
		return fallback
	}
	return s
}

// Candidate returns the slug tried on the given attempt: base for attempt 0,
// base-1, base-2, ... afterwards, trimmed so the result fits in MaxLength.
func Candidate(base string, attempt int) string {
	if attempt == 0 {
		return truncate(base, MaxLength)
	}
	suffix := "-" + strconv.Itoa(attempt)
	return truncate(base, MaxLength-len(suffix)) + suffix
}

// Unique returns the first candidate for which taken reports false.
func Unique(ctx context.Context, base string, taken func(ctx context.Context, slug string) (bool, error)) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		candidate := Candidate(base, attempt)
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
	}
	return "", domain.ErrSlugExhausted
}

// Insert calls insert with successive candidates until it stops failing with
// domain.ErrSlugTaken. It closes the race left open by checking with Unique
// and inserting afterwards.
func Insert(ctx context.Context, base string, insert func(ctx context.Context, slug string) error) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		candidate := Candidate(base, attempt)
		err := insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, domain.ErrSlugTaken) {
			return "", err
		}
	}
	return "", domain.ErrSlugExhausted
}

func truncate(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return strings.Trim(s, "-")
}
