// Package index provides the lexical inverted index and ranked chunk search.
package index

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"driftwatch/internal/models"
	"driftwatch/internal/store"
)

var wordRe = regexp.MustCompile(`\w+`)

// Tokenize lowercases text and returns its word tokens. Queries and chunk
// content go through the same tokenizer so terms always line up.
func Tokenize(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// Index maps lexical terms to the set of chunk IDs containing them. Posting
// sets only ever grow; terms are never removed within a process.
type Index struct {
	store    *store.Store
	mu       sync.RWMutex
	postings map[string]map[string]struct{}
	chunks   map[string]models.Chunk
	indexed  map[string]bool
	logger   *zap.Logger // optional; when set, logs debug events
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a logger for debug output (documents indexed, term counts).
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// New creates an inverted index backed by the given chunk store.
func New(s *store.Store, opts ...Option) *Index {
	ix := &Index{
		store:    s,
		postings: make(map[string]map[string]struct{}),
		chunks:   make(map[string]models.Chunk),
		indexed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexDocument tokenizes every chunk of fileID and adds its chunk IDs to the
// matching posting sets. Idempotent: re-indexing an already indexed document
// is a no-op.
func (ix *Index) IndexDocument(fileID string) error {
	ix.mu.RLock()
	done := ix.indexed[fileID]
	ix.mu.RUnlock()
	if done {
		return nil
	}
	chunks, err := ix.store.ChunksFor(fileID)
	if err != nil {
		return fmt.Errorf("index %s: %w", fileID, err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.indexed[fileID] {
		return nil
	}
	for _, ch := range chunks {
		ix.chunks[ch.ID] = ch
		for _, term := range Tokenize(ch.Content) {
			set, ok := ix.postings[term]
			if !ok {
				set = make(map[string]struct{})
				ix.postings[term] = set
			}
			set[ch.ID] = struct{}{}
		}
	}
	ix.indexed[fileID] = true
	if ix.logger != nil {
		ix.logger.Debug("document indexed",
			zap.String("file_id", fileID),
			zap.Int("chunks", len(chunks)),
			zap.Int("terms", len(ix.postings)),
		)
	}
	return nil
}

// Search returns up to topK chunks ranked for query. Candidates are the
// intersection of all query terms' posting sets when every term is indexed
// and the intersection is non-empty; otherwise the union of the posting sets
// of the terms that do exist. Candidates are scored by the summed raw
// occurrence count of each query term in the chunk content (case-insensitive
// substring count), descending; ties keep lexicographic chunk-ID order.
func (ix *Index) Search(query string, topK int) []models.Chunk {
	terms := Tokenize(query)
	if len(terms) == 0 || topK <= 0 {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	allIndexed := true
	for _, t := range terms {
		if _, ok := ix.postings[t]; !ok {
			allIndexed = false
			break
		}
	}

	candidates := make(map[string]struct{})
	if allIndexed {
		for id := range ix.postings[terms[0]] {
			candidates[id] = struct{}{}
		}
		for _, t := range terms[1:] {
			set := ix.postings[t]
			for id := range candidates {
				if _, ok := set[id]; !ok {
					delete(candidates, id)
				}
			}
		}
	}
	// Conjunctive match came up empty (or a term is unknown): widen to the
	// union of the terms that do exist.
	if len(candidates) == 0 {
		for _, t := range terms {
			for id := range ix.postings[t] {
				candidates[id] = struct{}{}
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type scored struct {
		chunk models.Chunk
		score int
	}
	results := make([]scored, 0, len(ids))
	for _, id := range ids {
		ch := ix.chunks[id]
		content := strings.ToLower(ch.Content)
		score := 0
		for _, t := range terms {
			score += strings.Count(content, t)
		}
		results = append(results, scored{chunk: ch, score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if topK > len(results) {
		topK = len(results)
	}
	out := make([]models.Chunk, topK)
	for i := 0; i < topK; i++ {
		out[i] = results[i].chunk
	}
	return out
}

// TermCount returns the number of distinct indexed terms.
func (ix *Index) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}

// DocumentCount returns the number of indexed documents.
func (ix *Index) DocumentCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.indexed)
}

// ChunkCount returns the number of indexed chunks.
func (ix *Index) ChunkCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}
