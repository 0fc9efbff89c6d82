// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package openrouter_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/provider/openrouter"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := openrouter.New(openrouter.Config{})
	require.Error(t, err)
	assert.True(t, vferr.HasCode(err, vferr.CodeProviderRequestInvalid))
	assert.Equal(t, "openrouter", vferr.FieldsOf(err)["provider"])
}

func TestOpenRouter_NameAndModels(t *testing.T) {
	p, err := openrouter.New(openrouter.Config{APIKey: "or-key"})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, openrouter.KnownModels(), models)
	for _, m := range models {
		assert.Equal(t, "openrouter", m.Provider)
		name, model := provider.ParseRef("openrouter/" + m.ID)
		assert.Equal(t, "openrouter", name)
		assert.Equal(t, m.ID, model)
	}
}

func TestOpenRouter_SendsAttributionHeadersAndVendorModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://visualfin.example", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "VisualFin", r.Header.Get("X-Title"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "openai/text-embedding-3-small", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0]}],` +
			`"model":"openai/text-embedding-3-small","usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	p, err := openrouter.New(openrouter.Config{
		APIKey:  "or-key",
		BaseURL: srv.URL,
		Referer: "https://visualfin.example",
		Title:   "VisualFin",
	})
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "openai/text-embedding-3-small", "Uber Transportation Ride")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}
