// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package provider

import (
	"context"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/receipt"
	"github.com/visualfin/visualfin/pkg/types"
)

// Provider is the core interface for model providers. What a provider can
// do is discovered by asserting the capability interfaces below.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Status(ctx context.Context) (ProviderStatus, error)
	Close() error
}

// Embedder turns text into a vector with the named model.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Extractor reads structured expense fields from a receipt image.
type Extractor interface {
	Extract(ctx context.Context, model string, img receipt.Image) (expense.Extraction, error)
}

// Advisor writes comparative advice for a new expense.
type Advisor interface {
	Advise(ctx context.Context, model string, req AdviceRequest) (expense.Advice, error)
}

// HealthReporter is implemented by providers that track their own health.
type HealthReporter interface {
	RecordFailure()
	RecordSuccess()
	HealthMetrics() HealthMetrics
}

// AdviceRequest is the input to an advice call: the expense just scanned
// and the most similar past expenses, best first.
type AdviceRequest struct {
	Current expense.Extraction
	Similar []*expense.Expense
}

// ModelInfo describes a model and the capabilities it serves.
type ModelInfo struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Provider     string             `json:"provider"`
	Capabilities []types.Capability `json:"capabilities"`
	// Dimensions is the embedding length for embedding models.
	Dimensions int `json:"dimensions,omitempty"`
}

// ProviderStatus indicates provider health.
type ProviderStatus struct {
	Available bool   `json:"available"`
	Provider  string `json:"provider"`
	Message   string `json:"message"`
}

// Supports reports whether p implements capability c.
func Supports(p Provider, c types.Capability) bool {
	switch c {
	case types.CapabilityEmbedding:
		_, ok := p.(Embedder)
		return ok
	case types.CapabilityExtraction:
		_, ok := p.(Extractor)
		return ok
	case types.CapabilityAdvice:
		_, ok := p.(Advisor)
		return ok
	default:
		return false
	}
}
