// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// EmbeddingCache remembers vectors by model and content hash so the same
// canonical text is only embedded once per model.
type EmbeddingCache interface {
	Get(ctx context.Context, model, contentHash string) ([]float32, bool, error)
	Put(ctx context.Context, model, contentHash string, embedding []float32) error
	Close() error
}

// ContentHash returns the cache key for a piece of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
