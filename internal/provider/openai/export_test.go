// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package openai

var (
	EmbeddingParams  = embeddingParams
	ExtractionParams = extractionParams
	AdviceParams     = adviceParams
)
