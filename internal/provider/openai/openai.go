// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package openai

import (
	"context"
	"errors"
	"net/http"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/receipt"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

// Config holds OpenAI provider configuration. Name, Models and Headers let
// OpenAI-compatible gateways reuse this provider.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server

	Name    string
	Models  []provider.ModelInfo
	Headers map[string]string
}

// Provider implements embedding, extraction and advice on the OpenAI API.
type Provider struct {
	client openaisdk.Client
	config Config
	name   string
	health *provider.HealthTracker
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	name := cfg.Name
	if name == "" {
		name = string(provider.ProviderOpenAI)
	}
	if cfg.APIKey == "" {
		return nil, vferr.New(vferr.CodeProviderRequestInvalid, name+": missing api_key in config", vferr.FieldProvider(name))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeProviderRequestInvalid, "%s: creating health tracker", name)
	}

	return &Provider{
		client: openaisdk.NewClient(opts...),
		config: cfg,
		name:   name,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

// KnownModels returns the hardcoded set of OpenAI models this provider serves.
func KnownModels() []provider.ModelInfo {
	vision := []types.Capability{types.CapabilityExtraction, types.CapabilityAdvice}
	embedding := []types.Capability{types.CapabilityEmbedding}
	return []provider.ModelInfo{
		{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai", Capabilities: vision},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai", Capabilities: vision},
		{ID: "gpt-4.1", Name: "GPT-4.1", Provider: "openai", Capabilities: vision},
		{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Provider: "openai", Capabilities: vision},
		{ID: "text-embedding-3-small", Name: "Text Embedding 3 Small", Provider: "openai", Capabilities: embedding, Dimensions: 1536},
		{ID: "text-embedding-3-large", Name: "Text Embedding 3 Large", Provider: "openai", Capabilities: embedding, Dimensions: 3072},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	if p.config.Models != nil {
		return append([]provider.ModelInfo(nil), p.config.Models...), nil
	}
	return KnownModels(), nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  p.name,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

// Embed returns the embedding of text under model.
func (p *Provider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, embeddingParams(model, text))
	if err != nil {
		return nil, p.classify(err, model, "embedding")
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, vferr.New(vferr.CodeProviderResponseInvalid, p.name+": embedding response is empty",
			vferr.FieldProvider(p.name), vferr.FieldModel(model))
	}
	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Extract reads expense fields from a receipt image in JSON mode.
func (p *Provider) Extract(ctx context.Context, model string, img receipt.Image) (expense.Extraction, error) {
	params, err := extractionParams(model, img)
	if err != nil {
		return expense.Extraction{}, err
	}
	text, err := p.complete(ctx, params, "extraction")
	if err != nil {
		return expense.Extraction{}, err
	}
	ex, err := provider.ParseExtraction(text)
	if err != nil {
		return expense.Extraction{}, vferr.With(err, vferr.FieldProvider(p.name), vferr.FieldModel(model))
	}
	return ex, nil
}

// Advise compares the current expense against its history in JSON mode.
func (p *Provider) Advise(ctx context.Context, model string, req provider.AdviceRequest) (expense.Advice, error) {
	params, err := adviceParams(model, req)
	if err != nil {
		return expense.Advice{}, err
	}
	text, err := p.complete(ctx, params, "advice")
	if err != nil {
		return expense.Advice{}, err
	}
	adv, err := provider.ParseAdvice(text)
	if err != nil {
		return expense.Advice{}, vferr.With(err, vferr.FieldProvider(p.name), vferr.FieldModel(model))
	}
	return adv, nil
}

func (p *Provider) complete(ctx context.Context, params openaisdk.ChatCompletionNewParams, op string) (string, error) {
	model := string(params.Model)
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", p.classify(err, model, op)
	}
	if len(resp.Choices) == 0 {
		return "", vferr.New(vferr.CodeProviderResponseInvalid, p.name+": "+op+" response has no choices",
			vferr.FieldProvider(p.name), vferr.FieldModel(model))
	}
	return resp.Choices[0].Message.Content, nil
}

func embeddingParams(model, text string) openaisdk.EmbeddingNewParams {
	return openaisdk.EmbeddingNewParams{
		Model:          openaisdk.EmbeddingModel(model),
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
}

func extractionParams(model string, img receipt.Image) (openaisdk.ChatCompletionNewParams, error) {
	if len(img.Data) == 0 {
		return openaisdk.ChatCompletionNewParams{}, vferr.New(vferr.CodeProviderRequestInvalid, "receipt image is empty")
	}
	parts := []openaisdk.ChatCompletionContentPartUnionParam{
		openaisdk.TextContentPart(provider.ExtractionPrompt + "\n\n" + provider.SchemaInstruction(provider.ExtractionJSONSchema)),
		openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{URL: img.DataURL()}),
	}
	return openaisdk.ChatCompletionNewParams{
		Model:          shared.ChatModel(model),
		Messages:       []openaisdk.ChatCompletionMessageParamUnion{openaisdk.UserMessage(parts)},
		ResponseFormat: jsonObject(),
	}, nil
}

func adviceParams(model string, req provider.AdviceRequest) (openaisdk.ChatCompletionNewParams, error) {
	prompt, err := provider.AdvicePrompt(req)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}
	return openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(provider.AdviceSystemPrompt),
			openaisdk.UserMessage(prompt + "\n\n" + provider.SchemaInstruction(provider.AdviceJSONSchema)),
		},
		ResponseFormat: jsonObject(),
	}, nil
}

func jsonObject() openaisdk.ChatCompletionNewParamsResponseFormatUnion {
	return openaisdk.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}
}

// classify maps SDK errors onto error codes. Rejected credentials are
// reported as such; everything else is an upstream failure.
func (p *Provider) classify(err error, model, op string) error {
	fields := []vferr.Attr{vferr.FieldProvider(p.name), vferr.FieldModel(model)}
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		fields = append(fields, vferr.Field("status", apiErr.StatusCode))
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return vferr.Wrap(err, vferr.CodeProviderKeyInvalid, p.name+": "+op+" rejected credentials", fields...)
		}
	}
	return vferr.Wrap(err, vferr.CodeProviderUpstreamFailure, p.name+": "+op+" request failed", fields...)
}
