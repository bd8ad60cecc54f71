package embedding

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// inflightCall tracks an embedding fetch owned by one caller. Waiters block
// on done; err is written before done is closed.
type inflightCall struct {
	done chan struct{}
	err  error
}

// CachedEmbedder wraps an Embedder with a content-addressed cache. A text is
// embedded at most once: repeat requests are served from memory, and
// concurrent requests for the same text collapse onto a single provider call.
// Entries are never evicted. With a CacheStore attached, new entries are
// written through so later runs start warm.
type CachedEmbedder struct {
	inner  Embedder
	store  *CacheStore
	logger *zap.Logger

	mu       sync.Mutex
	mem      map[string][]float32
	inflight map[string]*inflightCall
}

// NewCachedEmbedder wraps inner with a cache. store may be nil for a purely
// in-memory cache; otherwise persisted entries are loaded up front.
func NewCachedEmbedder(inner Embedder, store *CacheStore, logger *zap.Logger) (*CachedEmbedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mem := make(map[string][]float32)
	if store != nil {
		loaded, err := store.Load(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to warm embedding cache: %w", err)
		}
		mem = loaded
		logger.Debug("Embedding cache warmed", zap.Int("entries", len(mem)))
	}
	return &CachedEmbedder{
		inner:    inner,
		store:    store,
		logger:   logger,
		mem:      mem,
		inflight: make(map[string]*inflightCall),
	}, nil
}

// Embed returns the embedding for one text, from cache when available.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for texts in input order. Cache misses are
// deduplicated and sent to the provider in a single batched call; misses
// already being fetched by a concurrent caller are waited on instead of
// refetched. On provider failure nothing is cached and the error is returned.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = HashText(text)
	}
	out := make([][]float32, len(texts))

	// Phase 1: resolve hits and claim unowned misses. Misses owned by another
	// caller are recorded for waiting in phase 3.
	var ownedKeys []string
	var ownedTexts []string
	foreign := make(map[string]*inflightCall)
	claimed := make(map[string]bool)

	c.mu.Lock()
	for i, key := range keys {
		if vec, ok := c.mem[key]; ok {
			out[i] = vec
			continue
		}
		if claimed[key] || foreign[key] != nil {
			continue
		}
		if call, ok := c.inflight[key]; ok {
			foreign[key] = call
			continue
		}
		call := &inflightCall{done: make(chan struct{})}
		c.inflight[key] = call
		claimed[key] = true
		ownedKeys = append(ownedKeys, key)
		ownedTexts = append(ownedTexts, texts[i])
	}
	c.mu.Unlock()

	// Phase 2: one provider call for every miss this caller owns.
	if len(ownedKeys) > 0 {
		vecs, err := c.inner.EmbedBatch(ctx, ownedTexts)
		fresh := make(map[string][]float32, len(ownedKeys))

		c.mu.Lock()
		for j, key := range ownedKeys {
			if err == nil {
				c.mem[key] = vecs[j]
				fresh[key] = vecs[j]
			}
			call := c.inflight[key]
			delete(c.inflight, key)
			call.err = err
			close(call.done)
		}
		c.mu.Unlock()

		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalCall, err)
		}
		c.persist(ctx, fresh)
	}

	// Phase 3: wait for misses owned by concurrent callers.
	for key, call := range foreign {
		select {
		case <-call.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if call.err != nil {
			return nil, fmt.Errorf("%w: concurrent fetch for %s: %v", ErrExternalCall, key, call.err)
		}
	}

	// Every key is cached now; fill the remaining slots.
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, key := range keys {
		if out[i] != nil {
			continue
		}
		vec, ok := c.mem[key]
		if !ok {
			return nil, fmt.Errorf("%w: embedding for %s missing after fetch", ErrExternalCall, key)
		}
		out[i] = vec
	}
	return out, nil
}

// persist writes new entries through to the store. Persistence is best
// effort: the in-memory cache already holds the entries, so a write failure
// only costs warmth on the next run.
func (c *CachedEmbedder) persist(ctx context.Context, fresh map[string][]float32) {
	if c.store == nil || len(fresh) == 0 {
		return
	}
	if err := c.store.Put(ctx, fresh); err != nil {
		c.logger.Warn("Failed to persist embeddings", zap.Int("entries", len(fresh)), zap.Error(err))
	}
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Size returns the number of cached embeddings.
func (c *CachedEmbedder) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mem)
}

// Close closes the store and the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	var firstErr error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			firstErr = err
		}
	}
	if err := c.inner.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
