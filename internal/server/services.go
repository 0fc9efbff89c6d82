// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package server

import (
	"context"

	"github.com/visualfin/visualfin/internal/analysis"
	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/receipt"
	"github.com/visualfin/visualfin/internal/retrieval"
	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

// Analyzer runs scans and similarity searches. *analysis.Service
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, img receipt.Image) (*analysis.Analysis, error)
	Confirm(ctx context.Context, a *analysis.Analysis, receiptImage string) (*expense.Expense, error)
	FindSimilar(ctx context.Context, text string, topK int) ([]retrieval.Result, error)
	FindSimilarTo(ctx context.Context, id string, topK int) ([]retrieval.Result, error)
}

// ProviderHealth reports provider routing state. *provider.Registry
// implements it.
type ProviderHealth interface {
	Health() map[string]provider.HealthMetrics
	DefaultRef(c types.Capability) string
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
// Use NewServices to ensure all required services are provided.
type Services struct {
	analyzer  Analyzer
	expenses  store.ExpenseStore
	providers ProviderHealth
}

// NewServices creates a Services instance. Every argument is required.
func NewServices(a Analyzer, expenses store.ExpenseStore, providers ProviderHealth) (*Services, error) {
	if a == nil {
		return nil, vferr.New(vferr.CodeServerConfigInvalid, "analysis service is required")
	}
	if expenses == nil {
		return nil, vferr.New(vferr.CodeServerConfigInvalid, "expense store is required")
	}
	if providers == nil {
		return nil, vferr.New(vferr.CodeServerConfigInvalid, "provider health service is required")
	}
	return &Services{analyzer: a, expenses: expenses, providers: providers}, nil
}

func (s *Services) Analyzer() Analyzer { return s.analyzer }
func (s *Services) Expenses() store.ExpenseStore { return s.expenses }
func (s *Services) Providers() ProviderHealth { return s.providers }
