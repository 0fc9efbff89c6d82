// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package server

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/visualfin/visualfin/internal/analysis"
	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/insights"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/receipt"
	"github.com/visualfin/visualfin/internal/retrieval"
	"github.com/visualfin/visualfin/internal/store"
	"github.com/visualfin/visualfin/pkg/types"
)

// maxUploadBytes leaves room for JSON framing around a maximal image.
const maxUploadBytes = receipt.MaxEncodedSize + 64<<10

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "analyze-receipt",
		Method:       http.MethodPost,
		Path:         "/api/v1/receipts/analyze",
		Summary:      "Analyze a receipt photo",
		Description:  "Extracts the expense, finds similar past expenses and returns advice. Nothing is stored.",
		Tags:         []string{"receipts"},
		MaxBodyBytes: maxUploadBytes,
		Errors:       []int{http.StatusBadRequest, http.StatusBadGateway},
	}, s.handleAnalyzeReceipt)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-expense",
		Method:        http.MethodPost,
		Path:          "/api/v1/expenses",
		Summary:       "Confirm a scanned expense",
		Tags:          []string{"expenses"},
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  maxUploadBytes,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, s.handleCreateExpense)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-expenses",
		Method:      http.MethodGet,
		Path:        "/api/v1/expenses",
		Summary:     "List expenses, newest first",
		Tags:        []string{"expenses"},
	}, s.handleListExpenses)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-expense",
		Method:      http.MethodGet,
		Path:        "/api/v1/expenses/{id}",
		Summary:     "Get an expense",
		Tags:        []string{"expenses"},
		Errors:      []int{http.StatusNotFound},
	}, s.handleGetExpense)

	huma.Register(s.api, huma.Operation{
		OperationID: "similar-expenses",
		Method:      http.MethodGet,
		Path:        "/api/v1/expenses/{id}/similar",
		Summary:     "Rank past expenses by similarity to a stored one",
		Tags:        []string{"search"},
		Errors:      []int{http.StatusNotFound},
	}, s.handleSimilarExpenses)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-expenses",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Semantic search over expenses",
		Tags:        []string{"search"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-insights",
		Method:      http.MethodGet,
		Path:        "/api/v1/insights",
		Summary:     "Dashboard totals and recent expenses",
		Tags:        []string{"expenses"},
	}, s.handleInsights)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/api/v1/providers",
		Summary:     "Provider health and model routing",
		Tags:        []string{"system"},
	}, s.handleListProviders)

	huma.Register(s.api, huma.Operation{
		OperationID: "gateway-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Service status",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

// --- Request/Response types for huma ---

type analyzeReceiptInput struct {
	Body struct {
		Image string `json:"image" minLength:"1" doc:"Receipt photo as base64 or a data: URL"`
	}
}
type analyzeReceiptOutput struct {
	Body analysis.Analysis
}

type createExpenseInput struct {
	Body struct {
		Extracted      expense.Extraction `json:"extracted" doc:"Fields from the analysis, possibly edited"`
		Text           string             `json:"text,omitempty" doc:"Canonical text the embedding was made from"`
		Embedding      []float32          `json:"embedding,omitempty" doc:"Embedding from the analysis"`
		EmbeddingModel string             `json:"embeddingModel,omitempty"`
		ReceiptImage   string             `json:"receiptImage,omitempty" doc:"Receipt photo as base64 or a data: URL"`
	}
}
type expenseOutput struct {
	Body *expense.Expense
}

type listExpensesInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"500" default:"50" doc:"Page size; 0 returns everything"`
	Offset int `query:"offset" minimum:"0" default:"0"`
}
type listExpensesOutput struct {
	Body struct {
		Expenses []*expense.Expense `json:"expenses"`
		Total    int64              `json:"total"`
	}
}

type expenseIDInput struct {
	ID string `path:"id"`
}

type similarExpensesInput struct {
	ID string `path:"id"`
	K  int    `query:"k" minimum:"0" maximum:"100" doc:"Number of results; 0 uses the configured default"`
}
type resultsOutput struct {
	Body struct {
		Results []retrieval.Result `json:"results"`
	}
}

type searchInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"Free text, e.g. \"coffee\" or \"ride to the airport\""`
		K     int    `json:"k,omitempty" minimum:"0" maximum:"100" doc:"Number of results; 0 uses the configured default"`
	}
}

type insightsInput struct {
	Recent int `query:"recent" minimum:"0" maximum:"100" default:"5"`
}
type insightsOutput struct {
	Body insights.Summary
}

// ProviderSummary is one provider's health as reported by the API.
type ProviderSummary struct {
	Name string `json:"name"`
	provider.HealthMetrics
	FailureRate float64 `json:"failureRate"`
}

type listProvidersOutput struct {
	Body struct {
		Providers []ProviderSummary `json:"providers"`
		Defaults  map[string]string `json:"defaults" doc:"Default provider/model per capability"`
	}
}

type statusOutput struct {
	Body struct {
		Status    string      `json:"status" example:"ok" doc:"Service status"`
		Version   string      `json:"version"`
		Store     store.Stats `json:"store"`
		Providers int         `json:"providers" doc:"Registered providers"`
		Healthy   int         `json:"healthy" doc:"Providers currently available"`
	}
}

// --- Handlers ---

func (s *Server) handleAnalyzeReceipt(ctx context.Context, input *analyzeReceiptInput) (*analyzeReceiptOutput, error) {
	img, err := receipt.Decode(input.Body.Image, s.cfg.ReceiptMaxSide)
	if err != nil {
		return nil, apiError(err, "decoding receipt")
	}

	a, err := s.services.Analyzer().Analyze(ctx, img)
	if err != nil {
		return nil, apiError(err, "analyzing receipt")
	}
	for _, r := range a.Similar {
		dropEmbedding(r.Expense)
	}
	return &analyzeReceiptOutput{Body: *a}, nil
}

func (s *Server) handleCreateExpense(ctx context.Context, input *createExpenseInput) (*expenseOutput, error) {
	var image string
	if raw := strings.TrimSpace(input.Body.ReceiptImage); raw != "" {
		img, err := receipt.Decode(raw, s.cfg.ReceiptMaxSide)
		if err != nil {
			return nil, apiError(err, "decoding receipt")
		}
		image = img.DataURL()
	}

	a := &analysis.Analysis{
		Extracted:      input.Body.Extracted,
		Text:           input.Body.Text,
		Embedding:      input.Body.Embedding,
		EmbeddingModel: input.Body.EmbeddingModel,
	}
	e, err := s.services.Analyzer().Confirm(ctx, a, image)
	if err != nil {
		return nil, apiError(err, "saving expense")
	}
	return &expenseOutput{Body: e}, nil
}

func (s *Server) handleListExpenses(ctx context.Context, input *listExpensesInput) (*listExpensesOutput, error) {
	expenses, err := s.services.Expenses().List(ctx, store.ListOpts{
		Limit:       input.Limit,
		Offset:      input.Offset,
		NewestFirst: true,
	})
	if err != nil {
		return nil, apiError(err, "listing expenses")
	}
	total, err := s.services.Expenses().Count(ctx)
	if err != nil {
		return nil, apiError(err, "counting expenses")
	}

	for _, e := range expenses {
		dropEmbedding(e)
	}
	out := &listExpensesOutput{}
	out.Body.Expenses = nonNil(expenses)
	out.Body.Total = total
	return out, nil
}

func (s *Server) handleGetExpense(ctx context.Context, input *expenseIDInput) (*expenseOutput, error) {
	e, err := s.services.Expenses().Get(ctx, input.ID)
	if err != nil {
		return nil, apiError(err, "getting expense")
	}
	return &expenseOutput{Body: e}, nil
}

func (s *Server) handleSimilarExpenses(ctx context.Context, input *similarExpensesInput) (*resultsOutput, error) {
	results, err := s.services.Analyzer().FindSimilarTo(ctx, input.ID, input.K)
	if err != nil {
		return nil, apiError(err, "finding similar expenses")
	}
	return newResultsOutput(results), nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*resultsOutput, error) {
	results, err := s.services.Analyzer().FindSimilar(ctx, input.Body.Query, input.Body.K)
	if err != nil {
		return nil, apiError(err, "searching expenses")
	}
	return newResultsOutput(results), nil
}

func (s *Server) handleInsights(ctx context.Context, input *insightsInput) (*insightsOutput, error) {
	expenses, err := s.services.Expenses().List(ctx, store.ListOpts{})
	if err != nil {
		return nil, apiError(err, "listing expenses")
	}
	summary := insights.Summarize(expenses, input.Recent)
	for _, e := range summary.Recent {
		dropEmbedding(e)
	}
	summary.Recent = nonNil(summary.Recent)
	return &insightsOutput{Body: summary}, nil
}

func (s *Server) handleListProviders(_ context.Context, _ *struct{}) (*listProvidersOutput, error) {
	ph := s.services.Providers()

	out := &listProvidersOutput{}
	out.Body.Providers = providerSummaries(ph.Health())
	out.Body.Defaults = make(map[string]string, len(types.Capabilities))
	for _, c := range types.Capabilities {
		if ref := ph.DefaultRef(c); ref != "" {
			out.Body.Defaults[string(c)] = ref
		}
	}
	return out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	stats, err := s.services.Expenses().Stats(ctx)
	if err != nil {
		return nil, apiError(err, "reading store stats")
	}

	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Version = s.cfg.Version
	out.Body.Store = stats
	for _, m := range s.services.Providers().Health() {
		out.Body.Providers++
		if m.Available {
			out.Body.Healthy++
		}
	}
	return out, nil
}

func providerSummaries(health map[string]provider.HealthMetrics) []ProviderSummary {
	out := make([]ProviderSummary, 0, len(health))
	for name, m := range health {
		out = append(out, ProviderSummary{Name: name, HealthMetrics: m, FailureRate: m.FailureRate()})
	}
	slices.SortFunc(out, func(a, b ProviderSummary) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func newResultsOutput(results []retrieval.Result) *resultsOutput {
	out := &resultsOutput{}
	out.Body.Results = make([]retrieval.Result, 0, len(results))
	for _, r := range results {
		dropEmbedding(r.Expense)
		out.Body.Results = append(out.Body.Results, r)
	}
	return out
}

// dropEmbedding clears the vector from a record about to be serialized.
// Records handed out by stores and the analyzer are owned by the caller.
func dropEmbedding(e *expense.Expense) {
	if e != nil {
		e.Embedding = nil
	}
}

func nonNil(es []*expense.Expense) []*expense.Expense {
	if es == nil {
		return []*expense.Expense{}
	}
	return es
}
