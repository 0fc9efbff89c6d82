// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package memory provides an in-process storage backend. Nothing survives
// a restart; it backs tests and ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func init() {
	store.RegisterBackend("memory",
		func(string) (store.ExpenseStore, error) { return NewExpenseStore(), nil },
		func(string) (store.EmbeddingCache, error) { return NewEmbeddingCache(), nil },
	)
}

// Compile-time interface checks.
var (
	_ store.ExpenseStore   = (*ExpenseStore)(nil)
	_ store.EmbeddingCache = (*EmbeddingCache)(nil)
)

// ExpenseStore is an append-only in-memory expense collection.
type ExpenseStore struct {
	mu    sync.RWMutex
	order []*expense.Expense
	byID  map[string]*expense.Expense
}

func NewExpenseStore() *ExpenseStore {
	return &ExpenseStore{byID: make(map[string]*expense.Expense)}
}

func (s *ExpenseStore) Append(_ context.Context, e *expense.Expense) error {
	if e == nil {
		return vferr.New(vferr.CodeStoreExpenseAppendInvalid, "expense is nil")
	}
	if err := e.Validate(); err != nil {
		return vferr.Wrap(err, vferr.CodeStoreExpenseAppendInvalid, "validating expense", vferr.FieldExpenseID(e.ID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.ID]; ok {
		return vferr.Wrap(store.ErrConflict, vferr.CodeStoreExpenseAppendConflict,
			fmt.Sprintf("expense %s already exists", e.ID), vferr.FieldExpenseID(e.ID))
	}

	c := e.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.order = append(s.order, c)
	s.byID[c.ID] = c
	return nil
}

func (s *ExpenseStore) Get(_ context.Context, id string) (*expense.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, vferr.Wrap(store.ErrNotFound, vferr.CodeStoreExpenseGetNotFound,
			fmt.Sprintf("expense %s", id), vferr.FieldExpenseID(id))
	}
	return e.Clone(), nil
}

func (s *ExpenseStore) List(_ context.Context, opts store.ListOpts) ([]*expense.Expense, error) {
	s.mu.RLock()
	snapshot := slices.Clone(s.order)
	s.mu.RUnlock()

	if opts.NewestFirst {
		slices.Reverse(snapshot)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(snapshot) {
			return nil, nil
		}
		snapshot = snapshot[opts.Offset:]
	}
	if opts.Limit > 0 && len(snapshot) > opts.Limit {
		snapshot = snapshot[:opts.Limit]
	}

	out := make([]*expense.Expense, len(snapshot))
	for i, e := range snapshot {
		out[i] = e.Clone()
	}
	return out, nil
}

func (s *ExpenseStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.order)), nil
}

func (s *ExpenseStore) Stats(_ context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := store.Stats{Expenses: int64(len(s.order))}
	seen := map[int]bool{}
	for _, e := range s.order {
		if !e.HasEmbedding() {
			continue
		}
		st.WithEmbedding++
		if !seen[len(e.Embedding)] {
			seen[len(e.Embedding)] = true
			st.Dimensions = append(st.Dimensions, len(e.Embedding))
		}
	}
	slices.Sort(st.Dimensions)
	return st, nil
}

func (s *ExpenseStore) Close() error { return nil }

type cacheKey struct{ model, hash string }

// EmbeddingCache is a map-backed store.EmbeddingCache.
type EmbeddingCache struct {
	mu      sync.RWMutex
	entries map[cacheKey][]float32
}

func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{entries: make(map[cacheKey][]float32)}
}

func (c *EmbeddingCache) Get(_ context.Context, model, contentHash string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[cacheKey{model, contentHash}]
	return slices.Clone(v), ok, nil
}

func (c *EmbeddingCache) Put(_ context.Context, model, contentHash string, embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{model, contentHash}] = slices.Clone(embedding)
	return nil
}

func (c *EmbeddingCache) Close() error { return nil }
