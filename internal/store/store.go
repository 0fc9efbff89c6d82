// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package store

import (
	"context"

	"github.com/visualfin/visualfin/internal/expense"
)

// ExpenseStore persists expense records. The collection is append-only:
// there is no update or delete path.
type ExpenseStore interface {
	// Append stores a new record. A duplicate ID is a conflict.
	Append(ctx context.Context, e *expense.Expense) error
	Get(ctx context.Context, id string) (*expense.Expense, error)
	// List returns records in insertion order, or newest first when
	// opts.NewestFirst is set. Returned records are owned by the caller.
	List(ctx context.Context, opts ListOpts) ([]*expense.Expense, error)
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// ListOpts controls paging for List. A zero Limit means no limit.
type ListOpts struct {
	Limit       int
	Offset      int
	NewestFirst bool
}

// Stats summarizes the stored collection.
type Stats struct {
	Expenses      int64 `json:"expenses"`
	WithEmbedding int64 `json:"with_embedding"`
	// Dimensions lists each distinct embedding length present, ascending.
	// More than one entry means records were embedded by different models.
	Dimensions []int `json:"dimensions"`
}
