// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package store

import (
	"sync"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// ExpenseStoreFactory creates an expense store rooted at a data directory.
type ExpenseStoreFactory func(dataPath string) (ExpenseStore, error)

// EmbeddingCacheFactory creates an embedding cache rooted at a data directory.
type EmbeddingCacheFactory func(dataPath string) (EmbeddingCache, error)

var (
	expenseFactories = map[string]ExpenseStoreFactory{}
	cacheFactories   = map[string]EmbeddingCacheFactory{}
	factoriesMu      sync.RWMutex
)

// RegisterBackend registers factory functions for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, es ExpenseStoreFactory, ec EmbeddingCacheFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	expenseFactories[name] = es
	cacheFactories[name] = ec
}

// Backends returns the names of every registered backend.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(expenseFactories))
	for name := range expenseFactories {
		names = append(names, name)
	}
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewStores creates the expense store and embedding cache for dataPath.
// If the cache cannot be opened the already opened expense store is closed.
func NewStores(cfg *StorageConfig, dataPath string) (ExpenseStore, EmbeddingCache, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	esf, ok := expenseFactories[backend]
	ecf := cacheFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nil, vferr.Errorf(vferr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	es, err := esf(dataPath)
	if err != nil {
		return nil, nil, err
	}

	ec, err := ecf(dataPath)
	if err != nil {
		_ = es.Close()
		return nil, nil, err
	}

	return es, ec, nil
}
