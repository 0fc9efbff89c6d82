// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package insights computes the dashboard figures for a set of expenses.
package insights

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/visualfin/visualfin/internal/expense"
)

// DefaultRecent is the number of recent expenses in a Summary.
const DefaultRecent = 5

// NoCategory is reported as the top category of an empty collection.
const NoCategory = "N/A"

// CategoryTotal is the spend in one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Summary holds the figures shown on the dashboard.
type Summary struct {
	Count int `json:"count"`
	// Total adds amounts across currencies; TotalsByCurrency keeps them apart.
	Total            decimal.Decimal            `json:"total"`
	TotalsByCurrency map[string]decimal.Decimal `json:"totalsByCurrency"`
	ByCategory       []CategoryTotal            `json:"byCategory"`
	TopCategory      string                     `json:"topCategory"`
	Recent           []*expense.Expense         `json:"recent"`
}

// Summarize computes a Summary. recent <= 0 uses DefaultRecent. Nil
// entries are ignored and the input slice is not reordered.
func Summarize(expenses []*expense.Expense, recent int) Summary {
	if recent <= 0 {
		recent = DefaultRecent
	}

	s := Summary{
		Total:            decimal.Zero,
		TotalsByCurrency: make(map[string]decimal.Decimal),
		TopCategory:      NoCategory,
	}
	byCategory := make(map[string]*CategoryTotal)
	kept := make([]*expense.Expense, 0, len(expenses))

	for _, e := range expenses {
		if e == nil {
			continue
		}
		kept = append(kept, e)
		s.Count++
		s.Total = s.Total.Add(e.Amount)
		s.TotalsByCurrency[e.Currency] = s.TotalsByCurrency[e.Currency].Add(e.Amount)

		ct, ok := byCategory[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category, Total: decimal.Zero}
			byCategory[e.Category] = ct
		}
		ct.Total = ct.Total.Add(e.Amount)
		ct.Count++
	}

	s.ByCategory = make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		s.ByCategory = append(s.ByCategory, *ct)
	}
	slices.SortFunc(s.ByCategory, func(a, b CategoryTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	if len(s.ByCategory) > 0 {
		s.TopCategory = s.ByCategory[0].Category
	}

	// Dates are YYYY-MM-DD, so string order is chronological.
	slices.SortStableFunc(kept, func(a, b *expense.Expense) int {
		return cmp.Compare(b.Date, a.Date)
	})
	if len(kept) > recent {
		kept = kept[:recent]
	}
	s.Recent = kept
	return s
}
