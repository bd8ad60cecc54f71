package embedding

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// CacheStore persists embeddings keyed by content hash in SQLite. The table
// is append-only: entries are inserted once and never updated or deleted.
type CacheStore struct {
	db *sql.DB
}

// OpenCacheStore opens or creates the cache database at dbPath and
// initializes the schema. Parent directories are created if needed.
func OpenCacheStore(dbPath string) (*CacheStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		hash TEXT PRIMARY KEY,
		dim  INTEGER NOT NULL,
		vec  BLOB NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &CacheStore{db: db}, nil
}

// Load returns all persisted embeddings keyed by hash.
func (s *CacheStore) Load(ctx context.Context) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hash, dim, vec FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var hash string
		var dim int
		var blob []byte
		if err := rows.Scan(&hash, &dim, &blob); err != nil {
			return nil, fmt.Errorf("load cache: %w", err)
		}
		vec, err := decodeVector(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("load cache: entry %s: %w", hash, err)
		}
		out[hash] = vec
	}
	return out, rows.Err()
}

// Put inserts the given entries. Existing hashes are left untouched, so a
// replay of already persisted entries is harmless.
func (s *CacheStore) Put(ctx context.Context, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put cache: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO embeddings (hash, dim, vec) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("put cache: %w", err)
	}
	defer stmt.Close()
	for hash, vec := range entries {
		if _, err := stmt.ExecContext(ctx, hash, len(vec), encodeVector(vec)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("put cache: entry %s: %w", hash, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of persisted embeddings.
func (s *CacheStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *CacheStore) Close() error {
	return s.db.Close()
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte, dim int) ([]float32, error) {
	if dim < 0 || len(blob) != 4*dim {
		return nil, fmt.Errorf("blob size %d does not match dim %d", len(blob), dim)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
