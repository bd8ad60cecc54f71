// Package store provides the lazy, process-lifetime chunk store.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"driftwatch/internal/extract"
	"driftwatch/internal/fileid"
	"driftwatch/internal/models"
)

// ErrNotFound is returned when a document or chunk is not present in the corpus.
var ErrNotFound = errors.New("not found")

// Extractor extracts page text from a document file.
type Extractor interface {
	Extract(path string) ([]extract.Page, error)
	Supported(ext string) bool
}

// Store maps file IDs to their ordered chunk lists. A document is located in
// the corpus directory, extracted and chunked on first access, then cached for
// the process lifetime; chunks are immutable and never evicted.
type Store struct {
	dir        string
	tokenLimit int
	extractor  Extractor
	group      singleflight.Group
	mu         sync.RWMutex
	cache      map[string][]models.Chunk
	logger     *zap.Logger // optional; when set, logs debug events
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for debug output (document chunked, cache hits, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a chunk store over the corpus directory dir. tokenLimit is the
// approximate token budget per chunk.
func New(dir string, tokenLimit int, extractor Extractor, opts ...Option) *Store {
	s := &Store{
		dir:        dir,
		tokenLimit: tokenLimit,
		extractor:  extractor,
		cache:      make(map[string][]models.Chunk),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileIDs returns the file IDs of all supported documents under the corpus
// directory, in walk order.
func (s *Store) FileIDs() ([]string, error) {
	var ids []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !s.extractor.Supported(filepath.Ext(path)) {
			return nil
		}
		ids = append(ids, fileid.FileID(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir: %w", err)
	}
	return ids, nil
}

// ChunksFor returns the ordered chunk list for fileID, extracting and chunking
// the backing document on first call. Concurrent first calls for the same
// fileID share a single extraction. Returns ErrNotFound when no document in
// the corpus matches fileID.
func (s *Store) ChunksFor(fileID string) ([]models.Chunk, error) {
	s.mu.RLock()
	chunks, ok := s.cache[fileID]
	s.mu.RUnlock()
	if ok {
		return chunks, nil
	}
	v, err, _ := s.group.Do(fileID, func() (interface{}, error) {
		s.mu.RLock()
		cached, hit := s.cache[fileID]
		s.mu.RUnlock()
		if hit {
			return cached, nil
		}
		return s.load(fileID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Chunk), nil
}

// Chunk returns the single chunk with the given ID, or ErrNotFound when the
// ID does not parse or no such chunk exists.
func (s *Store) Chunk(id string) (models.Chunk, error) {
	fileID, _, _, err := fileid.ParseChunkID(id)
	if err != nil {
		return models.Chunk{}, fmt.Errorf("chunk %q: %w", id, ErrNotFound)
	}
	chunks, err := s.ChunksFor(fileID)
	if err != nil {
		return models.Chunk{}, err
	}
	for _, ch := range chunks {
		if ch.ID == id {
			return ch, nil
		}
	}
	return models.Chunk{}, fmt.Errorf("chunk %q: %w", id, ErrNotFound)
}

func (s *Store) load(fileID string) ([]models.Chunk, error) {
	path, err := s.locate(fileID)
	if err != nil {
		return nil, err
	}
	pages, err := s.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	name := filepath.Base(path)
	chunks := make([]models.Chunk, 0)
	for _, page := range pages {
		for ordinal, content := range ChunkPage(page.Text, s.tokenLimit) {
			chunks = append(chunks, models.Chunk{
				ID:           fileid.ChunkID(fileID, page.Number, ordinal),
				DocumentName: name,
				PageNumber:   page.Number,
				Content:      content,
				Ordinal:      ordinal,
			})
		}
	}
	s.mu.Lock()
	s.cache[fileID] = chunks
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Debug("document chunked",
			zap.String("file_id", fileID),
			zap.String("document", name),
			zap.Int("pages", len(pages)),
			zap.Int("chunks", len(chunks)),
		)
	}
	return chunks, nil
}

// locate walks the corpus directory for a supported file whose normalized
// name matches fileID. Called only on cache misses, so the walk cost is paid
// once per document.
func (s *Store) locate(fileID string) (string, error) {
	var found string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !s.extractor.Supported(filepath.Ext(path)) {
			return nil
		}
		if fileid.FileID(path) == fileID {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk corpus dir: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("document %q: %w", fileID, ErrNotFound)
	}
	return found, nil
}
