// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package server_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualfin/visualfin/internal/analysis"
	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/retrieval"
	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func TestAnalyzeReceipt(t *testing.T) {
	env := newTestEnv(t)
	past := withEmbedding(&expense.Expense{ID: "p1", Merchant: "Starbucks", Currency: "USD", Date: "2024-01-02"}, 1, 0)
	env.analyzer.analysis = &analysis.Analysis{
		Extracted:      expense.Extraction{Merchant: "Blue Bottle", Amount: amount("6.25"), Category: "Food & Dining"},
		Text:           "Blue Bottle Food & Dining Latte",
		Embedding:      []float32{0.9, 0.1},
		EmbeddingModel: "openai/text-embedding-3-small",
		Advice:         expense.Advice{Points: []string{"Coffee again."}, Sentiment: types.SentimentNeutral},
		Similar:        []retrieval.Result{{Expense: past, Score: 0.99}},
	}

	w := env.do(t, http.MethodPost, "/api/v1/receipts/analyze", map[string]string{
		"image": "data:image/png;base64," + pngBase64(t, 40, 20),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "image/jpeg", env.analyzer.gotImage.MIMEType)
	assert.Equal(t, 40, env.analyzer.gotImage.Width)
	assert.Equal(t, 20, env.analyzer.gotImage.Height)

	var body struct {
		Extracted      expense.Extraction `json:"extracted"`
		Text           string             `json:"text"`
		Embedding      []float32          `json:"embedding"`
		EmbeddingModel string             `json:"embeddingModel"`
		Advice         expense.Advice     `json:"advice"`
		Similar        []struct {
			Expense map[string]any `json:"expense"`
			Score   float64        `json:"score"`
		} `json:"similar"`
	}
	decodeBody(t, w, &body)
	assert.Equal(t, "Blue Bottle", body.Extracted.Merchant)
	assert.Equal(t, "Blue Bottle Food & Dining Latte", body.Text)
	assert.Equal(t, []float32{0.9, 0.1}, body.Embedding)
	assert.Equal(t, []string{"Coffee again."}, body.Advice.Points)
	require.Len(t, body.Similar, 1)
	assert.Equal(t, "p1", body.Similar[0].Expense["id"])
	assert.NotContains(t, body.Similar[0].Expense, "embedding")
	assert.InDelta(t, 0.99, body.Similar[0].Score, 1e-9)
}

func TestAnalyzeReceipt_Errors(t *testing.T) {
	tests := []struct {
		name       string
		image      string
		analyzeErr error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "not base64",
			image:      "%%%not-base64%%%",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not an image",
			image:      "aGVsbG8gd29ybGQ=",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty image",
			image:      "",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "provider outage",
			analyzeErr: vferr.New(vferr.CodeProviderUpstreamFailure, "upstream returned 503"),
			wantStatus: http.StatusBadGateway,
			wantDetail: "analyzing receipt: model provider unavailable",
		},
		{
			name:       "unexpected failure",
			analyzeErr: vferr.New(vferr.CodeAnalysisPipelineFailure, "boom"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "analyzing receipt failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.analyzer.err = tt.analyzeErr
			image := tt.image
			if tt.analyzeErr != nil {
				image = pngBase64(t, 4, 4)
			}

			w := env.do(t, http.MethodPost, "/api/v1/receipts/analyze", map[string]string{"image": image})
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantDetail != "" {
				var p problem
				decodeBody(t, w, &p)
				assert.Equal(t, tt.wantDetail, p.Detail)
				assert.NotContains(t, w.Body.String(), "503")
				assert.NotContains(t, w.Body.String(), "boom")
			}
		})
	}
}

func TestCreateExpense(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/expenses", map[string]any{
		"extracted": map[string]any{
			"merchant": "Uber",
			"amount":   "18.20",
			"currency": "usd",
			"date":     "2024-02-29",
			"category": "Transportation",
			"items":    []string{"Ride to Airport"},
		},
		"text":           "Uber Transportation Ride to Airport",
		"embedding":      []float32{0.1, 0.2, 0.3},
		"embeddingModel": "openai/text-embedding-3-small",
		"receiptImage":   pngBase64(t, 8, 8),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NotNil(t, env.analyzer.gotConfirm)
	assert.Equal(t, "Uber Transportation Ride to Airport", env.analyzer.gotConfirm.Text)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, env.analyzer.gotConfirm.Embedding)
	assert.Equal(t, "openai/text-embedding-3-small", env.analyzer.gotConfirm.EmbeddingModel)
	assert.True(t, strings.HasPrefix(env.analyzer.gotStored, "data:image/jpeg;base64,"))

	var got expense.Expense
	decodeBody(t, w, &got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Uber", got.Merchant)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "2024-02-29", got.Date)
	assert.Equal(t, "18.2", got.Amount.String())
}

func TestCreateExpense_WithoutImage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/expenses", map[string]any{
		"extracted": map[string]any{"merchant": "Amazon"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Empty(t, env.analyzer.gotStored)
}

func TestCreateExpense_Errors(t *testing.T) {
	tests := []struct {
		name       string
		image      string
		confirmErr error
		wantStatus int
	}{
		{name: "bad image", image: "aGVsbG8=", wantStatus: http.StatusBadRequest},
		{
			name:       "invalid record",
			confirmErr: vferr.New(vferr.CodeStoreExpenseAppendInvalid, "expense: date must be YYYY-MM-DD"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate",
			confirmErr: vferr.New(vferr.CodeStoreExpenseAppendConflict, "expense 1 already exists"),
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.analyzer.err = tt.confirmErr

			w := env.do(t, http.MethodPost, "/api/v1/expenses", map[string]any{
				"extracted":    map[string]any{"merchant": "Amazon"},
				"receiptImage": tt.image,
			})
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestListExpenses(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.do(t, http.MethodGet, "/api/v1/expenses", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Expenses []map[string]any `json:"expenses"`
		Total    int64            `json:"total"`
	}
	decodeBody(t, w, &body)
	assert.Equal(t, int64(4), body.Total)
	assert.Len(t, body.Expenses, 4)
	for _, e := range body.Expenses {
		assert.NotContains(t, e, "embedding")
	}

	w = env.do(t, http.MethodGet, "/api/v1/expenses?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeBody(t, w, &body)
	assert.Equal(t, int64(4), body.Total)
	assert.Len(t, body.Expenses, 1)
}

func TestListExpenses_Empty(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/expenses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"expenses":[],"total":0}`, stripSchema(t, w.Body.String()))
}

func TestListExpenses_LimitTooLarge(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/expenses?limit=501", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetExpense(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.do(t, http.MethodGet, "/api/v1/expenses/2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got expense.Expense
	decodeBody(t, w, &got)
	assert.Equal(t, "Uber", got.Merchant)

	w = env.do(t, http.MethodGet, "/api/v1/expenses/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSimilarExpenses(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.results = []retrieval.Result{
		{Expense: withEmbedding(&expense.Expense{ID: "4", Merchant: "Starbucks"}, 1, 0), Score: 0.97},
		{Expense: withEmbedding(&expense.Expense{ID: "3", Merchant: "Amazon"}, 0, 1), Score: 0.12},
	}

	w := env.do(t, http.MethodGet, "/api/v1/expenses/1/similar?k=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", env.analyzer.gotID)
	assert.Equal(t, 2, env.analyzer.gotK)

	var body struct {
		Results []struct {
			Expense map[string]any `json:"expense"`
			Score   float64        `json:"score"`
		} `json:"results"`
	}
	decodeBody(t, w, &body)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "4", body.Results[0].Expense["id"])
	assert.NotContains(t, body.Results[0].Expense, "embedding")
	assert.InDelta(t, 0.97, body.Results[0].Score, 1e-9)

	env.analyzer.err = vferr.New(vferr.CodeStoreExpenseGetNotFound, "expense nope")
	w = env.do(t, http.MethodGet, "/api/v1/expenses/nope/similar", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.results = []retrieval.Result{
		{Expense: &expense.Expense{ID: "1", Merchant: "Starbucks"}, Score: 0.8},
	}

	w := env.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "coffee", "k": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "coffee", env.analyzer.gotQuery)
	assert.Equal(t, 1, env.analyzer.gotK)
	assert.Contains(t, w.Body.String(), `"merchant":"Starbucks"`)
}

func TestSearch_NoResults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "coffee"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, env.analyzer.gotK)
	assert.JSONEq(t, `{"results":[]}`, stripSchema(t, w.Body.String()))
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		err        error
		wantStatus int
	}{
		{name: "empty query", body: map[string]any{"query": ""}, wantStatus: http.StatusUnprocessableEntity},
		{name: "k too large", body: map[string]any{"query": "tea", "k": 101}, wantStatus: http.StatusUnprocessableEntity},
		{
			name:       "blank after trimming",
			body:       map[string]any{"query": "   "},
			err:        vferr.New(vferr.CodeAnalysisInputInvalid, "search text is empty"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "embedding outage",
			body:       map[string]any{"query": "tea"},
			err:        vferr.New(vferr.CodeProviderAllUnavailable, "no provider available"),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.analyzer.err = tt.err

			w := env.do(t, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestInsights(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.do(t, http.MethodGet, "/api/v1/insights?recent=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Count       int              `json:"count"`
		Total       string           `json:"total"`
		TopCategory string           `json:"topCategory"`
		Recent      []map[string]any `json:"recent"`
	}
	decodeBody(t, w, &body)
	assert.Equal(t, 4, body.Count)
	assert.Equal(t, "154.7", body.Total)
	assert.Equal(t, "Shopping", body.TopCategory)
	assert.Len(t, body.Recent, 2)
}

func TestInsights_Empty(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/insights", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"recent":[]`)
	assert.Contains(t, w.Body.String(), `"topCategory":"N/A"`)
}

func TestListProviders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Providers []struct {
			Name         string  `json:"name"`
			Available    bool    `json:"available"`
			FailureCount int64   `json:"failureCount"`
			FailureRate  float64 `json:"failureRate"`
		} `json:"providers"`
		Defaults map[string]string `json:"defaults"`
	}
	decodeBody(t, w, &body)
	require.Len(t, body.Providers, 2)
	assert.Equal(t, "google", body.Providers[0].Name)
	assert.False(t, body.Providers[0].Available)
	assert.Equal(t, int64(2), body.Providers[0].FailureCount)
	assert.InDelta(t, 1.0, body.Providers[0].FailureRate, 1e-9)
	assert.Equal(t, "openai", body.Providers[1].Name)
	assert.True(t, body.Providers[1].Available)
	assert.Equal(t, map[string]string{
		"extraction": "google/gemini-2.5-flash",
		"embedding":  "openai/text-embedding-3-small",
	}, body.Defaults)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	require.NoError(t, env.expenses.Append(context.Background(),
		withEmbedding(&expense.Expense{ID: "v1", Currency: "USD", Date: "2024-01-01"}, 1, 2, 3)))

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Status    string      `json:"status"`
		Version   string      `json:"version"`
		Store     store.Stats `json:"store"`
		Providers int         `json:"providers"`
		Healthy   int         `json:"healthy"`
	}
	decodeBody(t, w, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, int64(5), body.Store.Expenses)
	assert.Equal(t, int64(1), body.Store.WithEmbedding)
	assert.Equal(t, []int{3}, body.Store.Dimensions)
	assert.Equal(t, 2, body.Providers)
	assert.Equal(t, 1, body.Healthy)
}
