// Package citation parses citation markers out of draft text and resolves
// them to chunk indices, tolerating formatting variance. All normalization
// rules live here so they stay unit-testable apart from search and indexing.
package citation

import (
	"regexp"
	"strings"
)

// markerRe accepts `[C-<token>]` with ASCII or full-width brackets,
// case-insensitive. A bare `[token]` is deliberately not a citation: drafts
// contain ordinary bracketed prose.
var markerRe = regexp.MustCompile(`(?i)(?:\[|【)C-([^\]】]+)(?:\]|】)`)

var (
	leadingZeros = regexp.MustCompile(`^0+(\d)`)
	nonAlnumRun  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Extract returns the citation tokens embedded in text, lowercased, in order
// of appearance. Duplicates are preserved; the caller decides how to treat
// repeated citations.
func Extract(text string) []string {
	matches := markerRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, strings.ToLower(m[1]))
	}
	return tokens
}

// Normalize folds known formatting variants of a chunk ID: dashes become
// underscores, leading zeros are stripped within each numeric segment (so
// "_02_" and "_2_" collide), remaining non-alphanumeric runs collapse to a
// single underscore, and edge underscores are trimmed. It never does
// substring or similarity matching; unrelated IDs stay distinct.
func Normalize(token string) string {
	alt := strings.ReplaceAll(strings.ToLower(token), "-", "_")
	parts := strings.Split(alt, "_")
	for i, part := range parts {
		parts[i] = leadingZeros.ReplaceAllString(part, "$1")
	}
	alt = strings.Join(parts, "_")
	alt = nonAlnumRun.ReplaceAllString(alt, "_")
	return strings.Trim(alt, "_")
}

// Resolve maps a citation token to its index in idToIdx (lowercased chunk ID
// to storage index). Exact match is tried first, then a retry with the
// normalized form. The second return is false when the token resolves to
// nothing; unresolved tokens are the caller's drift signal, never dropped
// silently.
func Resolve(token string, idToIdx map[string]int) (int, bool) {
	key := strings.ToLower(token)
	if idx, ok := idToIdx[key]; ok {
		return idx, true
	}
	if idx, ok := idToIdx[Normalize(key)]; ok {
		return idx, true
	}
	return 0, false
}
