// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/visualfin/visualfin/internal/expense"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// SeedExpenses returns the demo records used to populate an empty store.
// They carry no embeddings, so retrieval ignores them until new scans arrive.
func SeedExpenses() []*expense.Expense {
	return []*expense.Expense{
		{ID: "1", Merchant: "Starbucks", Amount: decimal.RequireFromString("5.40"), Currency: "USD", Date: "2023-10-15", Category: "Food & Dining", Items: []string{"Latte", "Muffin"}},
		{ID: "2", Merchant: "Uber", Amount: decimal.RequireFromString("24.50"), Currency: "USD", Date: "2023-10-18", Category: "Transportation", Items: []string{"Ride to Airport"}},
		{ID: "3", Merchant: "Amazon", Amount: decimal.RequireFromString("120.00"), Currency: "USD", Date: "2023-10-20", Category: "Shopping", Items: []string{"Headphones"}},
		{ID: "4", Merchant: "Starbucks", Amount: decimal.RequireFromString("4.80"), Currency: "USD", Date: "2023-11-01", Category: "Food & Dining", Items: []string{"Coffee"}},
	}
}

// Seed appends the demo records to s only when s holds no expenses, so a
// real history never gets demo data mixed in. It returns the number of
// records added. A record appended concurrently under a seed id is skipped.
func Seed(ctx context.Context, s ExpenseStore, now time.Time) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	added := 0
	for _, e := range SeedExpenses() {
		e.CreatedAt = now.UTC()
		if err := s.Append(ctx, e); err != nil {
			if vferr.IsConflict(err) || errors.Is(err, ErrConflict) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}
