// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package anthropic

var (
	ExtractionParams = extractionParams
	AdviceParams     = adviceParams
)
