// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package google_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/provider/google"
	"github.com/visualfin/visualfin/internal/receipt"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

var (
	_ provider.Provider       = (*google.Provider)(nil)
	_ provider.Embedder       = (*google.Provider)(nil)
	_ provider.Extractor      = (*google.Provider)(nil)
	_ provider.Advisor        = (*google.Provider)(nil)
	_ provider.HealthReporter = (*google.Provider)(nil)
)

func mustNewProvider(t *testing.T) *google.Provider {
	t.Helper()
	p, err := google.New(google.Config{APIKey: "test-key"})
	require.NoError(t, err)
	return p
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := google.New(google.Config{})
	require.Error(t, err)
	assert.True(t, vferr.HasCode(err, vferr.CodeProviderRequestInvalid))
}

func TestGoogleProvider_NameStatusAndModels(t *testing.T) {
	p := mustNewProvider(t)
	ctx := context.Background()
	assert.Equal(t, "google", p.Name())
	assert.True(t, p.Available(ctx))

	st, err := p.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Available)

	models, err := p.ListModels(ctx)
	require.NoError(t, err)
	byID := make(map[string]provider.ModelInfo, len(models))
	for _, m := range models {
		assert.Equal(t, "google", m.Provider)
		byID[m.ID] = m
	}
	require.Contains(t, byID, "text-embedding-004")
	assert.Equal(t, []types.Capability{types.CapabilityEmbedding}, byID["text-embedding-004"].Capabilities)
	assert.Equal(t, 768, byID["text-embedding-004"].Dimensions)
	require.Contains(t, byID, "gemini-2.5-flash")
	assert.Contains(t, byID["gemini-2.5-flash"].Capabilities, types.CapabilityExtraction)
	assert.Contains(t, byID["gemini-2.5-flash"].Capabilities, types.CapabilityAdvice)
}

func TestGoogleProvider_HealthRoundTrip(t *testing.T) {
	p := mustNewProvider(t)
	p.RecordFailure()
	assert.False(t, p.Available(context.Background()))
	assert.Equal(t, int64(1), p.HealthMetrics().FailureCount)
	p.RecordSuccess()
	assert.True(t, p.Available(context.Background()))
}

func TestExtractionRequest(t *testing.T) {
	img := receipt.Image{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}
	contents, cfg, err := google.ExtractionRequest(img)
	require.NoError(t, err)

	require.Len(t, contents, 1)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	require.NotNil(t, contents[0].Parts[0].InlineData)
	assert.Equal(t, img.Data, contents[0].Parts[0].InlineData.Data)
	assert.Equal(t, "image/jpeg", contents[0].Parts[0].InlineData.MIMEType)
	assert.Equal(t, provider.ExtractionPrompt, contents[0].Parts[1].Text)

	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.ResponseSchema)
	assert.Equal(t, []string{"merchant", "amount", "date", "category"}, cfg.ResponseSchema.Required)
	assert.Equal(t, expense.Categories, cfg.ResponseSchema.Properties["category"].Enum)
	assert.Equal(t, genai.TypeArray, cfg.ResponseSchema.Properties["items"].Type)

	_, _, err = google.ExtractionRequest(receipt.Image{})
	require.Error(t, err)
	assert.True(t, vferr.IsInvalidInput(err))
}

func TestAdviceRequest(t *testing.T) {
	amount := decimal.RequireFromString("24.50")
	contents, cfg, err := google.AdviceRequest(provider.AdviceRequest{
		Current: expense.Extraction{Merchant: "Uber", Amount: &amount},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].Parts[0].Text, `"merchant":"Uber"`)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, provider.AdviceSystemPrompt, cfg.SystemInstruction.Parts[0].Text)
	assert.Equal(t, provider.SentimentValues(), cfg.ResponseSchema.Properties["sentiment"].Enum)
}

func TestEmbeddingValues(t *testing.T) {
	vec, err := google.EmbeddingValues(&genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)

	for _, resp := range []*genai.EmbedContentResponse{nil, {}, {Embeddings: []*genai.ContentEmbedding{{}}}} {
		_, err := google.EmbeddingValues(resp)
		require.Error(t, err)
		assert.True(t, vferr.HasCode(err, vferr.CodeProviderResponseInvalid))
	}
}

func TestUpstreamClassifiesCredentialErrors(t *testing.T) {
	err := google.Upstream(errors.New("Error 400, Message: API key not valid, Status: INVALID_ARGUMENT, Details: API_KEY_INVALID"), "gemini-2.5-flash", "extraction")
	assert.True(t, vferr.HasCode(err, vferr.CodeProviderKeyInvalid))

	err = google.Upstream(errors.New("Error 503, Status: UNAVAILABLE"), "gemini-2.5-flash", "advice")
	assert.True(t, vferr.IsUpstreamFailure(err))
	assert.Equal(t, "gemini-2.5-flash", vferr.FieldsOf(err)["model"])
}
