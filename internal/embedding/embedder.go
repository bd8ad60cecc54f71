// Package embedding provides text embedding via an external provider, with a
// content-addressed persistent cache.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrExternalCall marks a failure of the external embedding provider. Callers
// may retry at their discretion; nothing is cached for failed calls.
var ErrExternalCall = errors.New("external embedding call failed")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// HashText returns the cache key for text: hex SHA-256 of its UTF-8 bytes.
// Identical text always maps to the identical key.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
