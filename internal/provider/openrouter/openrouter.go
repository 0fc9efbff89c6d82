// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package openrouter configures the OpenAI-compatible provider for the
// OpenRouter gateway, which fronts Gemini, GPT and Claude models under
// "vendor/model" IDs.
package openrouter

import (
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/provider/openai"
	"github.com/visualfin/visualfin/pkg/types"
)

// DefaultBaseURL is OpenRouter's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config holds OpenRouter provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
	// Referer and Title identify the app on OpenRouter's leaderboards.
	Referer string
	Title   string
}

// New creates an OpenRouter provider. Returns an error if the API key is missing.
func New(cfg Config) (*openai.Provider, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	headers := map[string]string{}
	if cfg.Referer != "" {
		headers["HTTP-Referer"] = cfg.Referer
	}
	if cfg.Title != "" {
		headers["X-Title"] = cfg.Title
	}
	return openai.New(openai.Config{
		APIKey:  cfg.APIKey,
		BaseURL: base,
		Name:    string(provider.ProviderOpenRouter),
		Models:  KnownModels(),
		Headers: headers,
	})
}

// KnownModels returns a curated set of OpenRouter models.
func KnownModels() []provider.ModelInfo {
	vision := []types.Capability{types.CapabilityExtraction, types.CapabilityAdvice}
	return []provider.ModelInfo{
		{ID: "google/gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: "openrouter", Capabilities: vision},
		{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openrouter", Capabilities: vision},
		{ID: "anthropic/claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Provider: "openrouter", Capabilities: vision},
		{
			ID:           "openai/text-embedding-3-small",
			Name:         "Text Embedding 3 Small",
			Provider:     "openrouter",
			Capabilities: []types.Capability{types.CapabilityEmbedding},
			Dimensions:   1536,
		},
	}
}
