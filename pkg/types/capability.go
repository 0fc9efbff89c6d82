// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package types

// Capability identifies one of the model-backed steps of a receipt scan.
type Capability string

const (
	// CapabilityEmbedding turns canonical expense text into a vector.
	CapabilityEmbedding Capability = "embedding"
	// CapabilityExtraction reads structured fields from a receipt image.
	CapabilityExtraction Capability = "extraction"
	// CapabilityAdvice writes comparative advice for a new expense.
	CapabilityAdvice Capability = "advice"
)

// Capabilities lists every capability in pipeline order.
var Capabilities = []Capability{CapabilityExtraction, CapabilityEmbedding, CapabilityAdvice}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityEmbedding, CapabilityExtraction, CapabilityAdvice:
		return true
	default:
		return false
	}
}
