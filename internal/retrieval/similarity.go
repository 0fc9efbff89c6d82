// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package retrieval

import "math"

// CosineSimilarity returns dot(a,b) / (|a| * |b|) accumulated in float64.
// Vectors of different length, vectors with a zero norm and vectors
// holding NaN or Inf score 0. The result is clamped to [-1, 1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return max(-1, min(1, score))
}
