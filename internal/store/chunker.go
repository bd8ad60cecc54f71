package store

import "strings"

// SplitSentences splits text into sentences at boundary punctuation (. ! ?)
// followed by whitespace. Punctuation stays with its sentence, so runs like
// "..." split only after the last dot.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 >= len(text) || !isSpace(text[i+1]) {
				continue
			}
			out = append(out, text[start:i+1])
			j := i + 1
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// ChunkPage splits page text into sentence-aligned chunks of roughly
// tokenLimit tokens, approximated as tokenLimit*4 characters. Sentences are
// accumulated until the character budget is reached; a single sentence over
// the budget still becomes one chunk (sentences are never split mid-way).
// Empty or whitespace-only text yields no chunks, and no emitted chunk is
// empty.
func ChunkPage(text string, tokenLimit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	limit := tokenLimit * 4
	var chunks []string
	var buf []string
	charCount := 0
	flush := func() {
		if c := strings.TrimSpace(strings.Join(buf, " ")); c != "" {
			chunks = append(chunks, c)
		}
		buf, charCount = nil, 0
	}
	for _, sent := range SplitSentences(text) {
		buf = append(buf, sent)
		charCount += len(sent)
		if charCount >= limit {
			flush()
		}
	}
	if len(buf) > 0 {
		flush()
	}
	return chunks
}
