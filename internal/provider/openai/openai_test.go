// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/provider/openai"
	"github.com/visualfin/visualfin/internal/receipt"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

var (
	_ provider.Provider       = (*openai.Provider)(nil)
	_ provider.Embedder       = (*openai.Provider)(nil)
	_ provider.Extractor      = (*openai.Provider)(nil)
	_ provider.Advisor        = (*openai.Provider)(nil)
	_ provider.HealthReporter = (*openai.Provider)(nil)
)

var testImage = receipt.Image{Data: []byte{0xff, 0xd8, 0xff, 0xe0}, MIMEType: "image/jpeg"}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *openai.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := openai.New(openai.Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	return p
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func writeChat(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := openai.New(openai.Config{})
	require.Error(t, err)
	assert.True(t, vferr.HasCode(err, vferr.CodeProviderRequestInvalid))
}

func TestOpenAIProvider_DefaultsAndModels(t *testing.T) {
	p, err := openai.New(openai.Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	var embeddings int
	for _, m := range models {
		if len(m.Capabilities) == 1 && m.Capabilities[0] == types.CapabilityEmbedding {
			embeddings++
			assert.Positive(t, m.Dimensions, m.ID)
		}
	}
	assert.Equal(t, 2, embeddings)
}

func TestOpenAIProvider_CustomIdentity(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Title")
		writeChat(w, `{"advice":["ok"],"sentiment":"neutral"}`)
	}))
	defer srv.Close()

	p, err := openai.New(openai.Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Name:    "gateway",
		Models:  []provider.ModelInfo{{ID: "m", Provider: "gateway"}},
		Headers: map[string]string{"X-Title": "VisualFin"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gateway", p.Name())

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []provider.ModelInfo{{ID: "m", Provider: "gateway"}}, models)

	_, err = p.Advise(context.Background(), "m", provider.AdviceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "VisualFin", gotHeader)
}

func TestOpenAIProvider_Embed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "text-embedding-3-small", body["model"])
		assert.Equal(t, "Starbucks Food & Dining Latte", body["input"])
		assert.Equal(t, "float", body["encoding_format"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}],` +
			`"model":"text-embedding-3-small","usage":{"prompt_tokens":1,"total_tokens":1}}`))
	})

	vec, err := p.Embed(context.Background(), "text-embedding-3-small", "Starbucks Food & Dining Latte")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
}

func TestOpenAIProvider_EmbedEmptyResponse(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"m","usage":{"prompt_tokens":0,"total_tokens":0}}`))
	})

	_, err := p.Embed(context.Background(), "m", "x")
	require.Error(t, err)
	assert.True(t, vferr.HasCode(err, vferr.CodeProviderResponseInvalid))
}

func TestOpenAIProvider_Extract(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		parts := msgs[0].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		text := parts[0].(map[string]any)["text"].(string)
		assert.True(t, strings.HasPrefix(text, provider.ExtractionPrompt))
		url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		assert.Equal(t, testImage.DataURL(), url)

		writeChat(w, `{"merchant":"Starbucks","amount":5.4,"currency":"USD","date":"2023-10-15","category":"Food & Dining","items":["Latte","Muffin"]}`)
	})

	ex, err := p.Extract(context.Background(), "gpt-4o-mini", testImage)
	require.NoError(t, err)
	assert.Equal(t, "Starbucks", ex.Merchant)
	assert.Equal(t, "5.4", ex.Amount.String())
	assert.Equal(t, []string{"Latte", "Muffin"}, ex.Items)
}

func TestOpenAIProvider_ExtractRejectsEmptyImage(t *testing.T) {
	_, err := openai.ExtractionParams("gpt-4o", receipt.Image{})
	require.Error(t, err)
	assert.True(t, vferr.IsInvalidInput(err))
}

func TestOpenAIProvider_Advise(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Contains(t, msgs[1].(map[string]any)["content"], `"merchant":"Uber"`)
		writeChat(w, "```json\n{\"advice\":[\"Rides are up 20%\"],\"sentiment\":\"warning\"}\n```")
	})

	adv, err := p.Advise(context.Background(), "gpt-4o-mini", provider.AdviceRequest{
		Current: expense.Extraction{Merchant: "Uber"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rides are up 20%"}, adv.Points)
	assert.Equal(t, types.SentimentWarning, adv.Sentiment)
}

func TestOpenAIProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode vferr.Code
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantCode: vferr.CodeProviderKeyInvalid},
		{name: "bad request", status: http.StatusBadRequest, wantCode: vferr.CodeProviderUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			})

			_, err := p.Extract(context.Background(), "gpt-4o", testImage)
			require.Error(t, err)
			assert.True(t, vferr.HasCode(err, tt.wantCode), "got %s", vferr.CodeOf(err))
			assert.Equal(t, "openai", vferr.FieldsOf(err)["provider"])
		})
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	})

	_, err := p.Advise(context.Background(), "m", provider.AdviceRequest{})
	require.Error(t, err)
	assert.True(t, vferr.HasCode(err, vferr.CodeProviderResponseInvalid))
}
