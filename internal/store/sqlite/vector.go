// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.EmbeddingCache = (*EmbeddingCache)(nil)

// EmbeddingCache implements store.EmbeddingCache backed by SQLite.
type EmbeddingCache struct {
	db *sql.DB
}

// NewEmbeddingCache opens (or creates) a SQLite database at dbPath and
// initialises the embedding_cache table.
func NewEmbeddingCache(dbPath string) (*EmbeddingCache, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS embedding_cache (
	model        TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	embedding    BLOB NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (model, content_hash)
)`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "creating embedding_cache table: %w", err)
	}

	return &EmbeddingCache{db: db}, nil
}

// Get returns the cached vector for model and contentHash.
func (c *EmbeddingCache) Get(ctx context.Context, model, contentHash string) ([]float32, bool, error) {
	var blob []byte
	const q = `SELECT embedding FROM embedding_cache WHERE model = ? AND content_hash = ?`
	err := c.db.QueryRowContext(ctx, q, model, contentHash).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, vferr.Errorf(vferr.CodeStoreEmbeddingCacheDatabase, "reading cached embedding: %w", err)
	}

	vec, err := decodeEmbedding(blob)
	if err != nil {
		return nil, false, vferr.Errorf(vferr.CodeStoreEmbeddingCacheDatabase, "decoding cached embedding: %w", err)
	}
	return vec, len(vec) > 0, nil
}

// Put stores or replaces the vector for model and contentHash. Empty
// vectors are not cached.
func (c *EmbeddingCache) Put(ctx context.Context, model, contentHash string, embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}
	blob, err := encodeEmbedding(embedding)
	if err != nil {
		return vferr.Errorf(vferr.CodeStoreInvalidInput, "serializing embedding: %w", err)
	}

	const q = `INSERT INTO embedding_cache (model, content_hash, embedding, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(model, content_hash) DO UPDATE SET embedding = excluded.embedding, created_at = excluded.created_at`
	if _, err := c.db.ExecContext(ctx, q, model, contentHash, blob, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return vferr.Errorf(vferr.CodeStoreEmbeddingCacheDatabase, "caching embedding: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}

// encodeEmbedding serializes a vector in sqlite-vec's float32 blob format.
func encodeEmbedding(v []float32) ([]byte, error) {
	return sqlite_vec.SerializeFloat32(v)
}

// decodeEmbedding reverses encodeEmbedding: little-endian IEEE 754 float32s.
func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
