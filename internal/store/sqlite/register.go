// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package sqlite

import (
	"path/filepath"

	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newExpenseStore, newEmbeddingCache)
}

func newExpenseStore(dataPath string) (store.ExpenseStore, error) {
	es, err := NewExpenseStore(filepath.Join(dataPath, "expenses.db"))
	if err != nil {
		return nil, vferr.Wrap(err, vferr.CodeStoreDatabaseFailure, "creating expense store")
	}
	return es, nil
}

func newEmbeddingCache(dataPath string) (store.EmbeddingCache, error) {
	ec, err := NewEmbeddingCache(filepath.Join(dataPath, "embeddings.db"))
	if err != nil {
		return nil, vferr.Wrap(err, vferr.CodeStoreDatabaseFailure, "creating embedding cache")
	}
	return ec, nil
}
