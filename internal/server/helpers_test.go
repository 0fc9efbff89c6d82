// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/visualfin/visualfin/internal/analysis"
	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/receipt"
	"github.com/visualfin/visualfin/internal/retrieval"
	"github.com/visualfin/visualfin/internal/server"
	"github.com/visualfin/visualfin/internal/store"
	"github.com/visualfin/visualfin/internal/store/memory"
	"github.com/visualfin/visualfin/pkg/types"
)

type fakeAnalyzer struct {
	analysis *analysis.Analysis
	results  []retrieval.Result
	err      error

	gotImage   receipt.Image
	gotConfirm *analysis.Analysis
	gotStored  string
	gotQuery   string
	gotID      string
	gotK       int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, img receipt.Image) (*analysis.Analysis, error) {
	f.gotImage = img
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *fakeAnalyzer) Confirm(_ context.Context, a *analysis.Analysis, receiptImage string) (*expense.Expense, error) {
	f.gotConfirm = a
	f.gotStored = receiptImage
	if f.err != nil {
		return nil, f.err
	}
	return expense.New(a.Extracted, a.Embedding, receiptImage, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)), nil
}

func (f *fakeAnalyzer) FindSimilar(_ context.Context, text string, k int) ([]retrieval.Result, error) {
	f.gotQuery, f.gotK = text, k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeAnalyzer) FindSimilarTo(_ context.Context, id string, k int) ([]retrieval.Result, error) {
	f.gotID, f.gotK = id, k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeProviders struct {
	health   map[string]provider.HealthMetrics
	defaults map[types.Capability]string
}

func (f *fakeProviders) Health() map[string]provider.HealthMetrics { return f.health }

func (f *fakeProviders) DefaultRef(c types.Capability) string { return f.defaults[c] }

type testEnv struct {
	srv       *server.Server
	analyzer  *fakeAnalyzer
	expenses  *memory.ExpenseStore
	providers *fakeProviders
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		analyzer: &fakeAnalyzer{},
		expenses: memory.NewExpenseStore(),
		providers: &fakeProviders{
			health: map[string]provider.HealthMetrics{
				"openai": {Available: true},
				"google": {Available: false, FailureCount: 2},
			},
			defaults: map[types.Capability]string{
				types.CapabilityExtraction: "google/gemini-2.5-flash",
				types.CapabilityEmbedding:  "openai/text-embedding-3-small",
			},
		},
	}

	services, err := server.NewServices(env.analyzer, env.expenses, env.providers)
	require.NoError(t, err)

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Version:    "1.2.3",
		Services:   services,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	env.srv = srv
	return env
}

func (env *testEnv) seed(t *testing.T) {
	t.Helper()
	_, err := store.Seed(context.Background(), env.expenses, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

// pngBase64 returns a small solid PNG as standard base64.
func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func withEmbedding(e *expense.Expense, vec ...float32) *expense.Expense {
	e.Embedding = vec
	return e
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// stripSchema removes the $schema link huma adds to response bodies.
func stripSchema(t *testing.T, body string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	delete(m, "$schema")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}
