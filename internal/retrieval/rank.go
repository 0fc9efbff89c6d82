// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package retrieval ranks stored expenses by semantic similarity to a
// query vector using an exhaustive cosine scan.
package retrieval

import (
	"cmp"
	"slices"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/pkg/types"
)

// DefaultTopK is the number of neighbours returned when none is configured.
const DefaultTopK = 3

// Result pairs a candidate with its similarity to the query. Expense
// points at the caller's record; it is not a copy.
type Result struct {
	Expense *expense.Expense `json:"expense"`
	Score   float64          `json:"score"`
}

// Rank returns the topK candidates most similar to query, best first.
// Candidates without an embedding are skipped and equal scores keep their
// input order. A negative topK yields no results.
func Rank(query []float32, candidates []*expense.Expense, topK int) []Result {
	return Ranker{TopK: topK}.rank(query, candidates, topK)
}

// Ranker carries the tunable parts of ranking. The zero value ranks with
// DefaultTopK and tolerates dimension mismatches.
type Ranker struct {
	TopK       int
	Dimensions types.DimensionPolicy
}

// Rank ranks with the configured limit.
func (r Ranker) Rank(query []float32, candidates []*expense.Expense) []Result {
	k := r.TopK
	if k == 0 {
		k = DefaultTopK
	}
	return r.rank(query, candidates, k)
}

// RankK ranks with an explicit limit; k <= 0 falls back to the
// configured one.
func (r Ranker) RankK(query []float32, candidates []*expense.Expense, k int) []Result {
	if k <= 0 {
		return r.Rank(query, candidates)
	}
	return r.rank(query, candidates, k)
}

func (r Ranker) rank(query []float32, candidates []*expense.Expense, topK int) []Result {
	if len(query) == 0 || len(candidates) == 0 || topK <= 0 {
		return nil
	}

	scored := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasEmbedding() {
			continue
		}
		if r.Dimensions == types.DimensionsSkip && len(c.Embedding) != len(query) {
			continue
		}
		scored = append(scored, Result{Expense: c, Score: CosineSimilarity(query, c.Embedding)})
	}

	slices.SortStableFunc(scored, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
