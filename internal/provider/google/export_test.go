// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package google

var (
	ExtractionRequest = extractionRequest
	AdviceRequest     = adviceRequest
	EmbeddingValues   = embeddingValues
	Upstream          = upstream
)
