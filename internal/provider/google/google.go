// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package google

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/receipt"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

const name = "google"

// Config holds Google provider configuration.
type Config struct {
	APIKey string
	// BaseURL overrides the Gemini API endpoint. Empty uses the SDK default.
	BaseURL string
}

// Provider implements embedding, extraction and advice on the Gemini API.
type Provider struct {
	client *genai.Client
	config Config
	health *provider.HealthTracker
}

// New creates a new Google provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, vferr.New(vferr.CodeProviderRequestInvalid, "google: missing api_key in config", vferr.FieldProvider(name))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeProviderUpstreamFailure, "google: creating client")
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeProviderRequestInvalid, "google: creating health tracker")
	}

	return &Provider{
		client: client,
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return name }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

// knownModels returns the hardcoded set of Gemini models this provider serves.
func knownModels() []provider.ModelInfo {
	multimodal := []types.Capability{types.CapabilityExtraction, types.CapabilityAdvice}
	return []provider.ModelInfo{
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: name, Capabilities: multimodal},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: name, Capabilities: multimodal},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: name, Capabilities: multimodal},
		{
			ID:           "text-embedding-004",
			Name:         "Text Embedding 004",
			Provider:     name,
			Capabilities: []types.Capability{types.CapabilityEmbedding},
			Dimensions:   768,
		},
		{
			ID:           "gemini-embedding-001",
			Name:         "Gemini Embedding 001",
			Provider:     name,
			Capabilities: []types.Capability{types.CapabilityEmbedding},
			Dimensions:   3072,
		},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  name,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

// Embed returns the embedding of text under model.
func (p *Provider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := p.client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, upstream(err, model, "embedding")
	}
	return embeddingValues(resp)
}

// Extract reads expense fields from a receipt image using structured output.
func (p *Provider) Extract(ctx context.Context, model string, img receipt.Image) (expense.Extraction, error) {
	contents, cfg, err := extractionRequest(img)
	if err != nil {
		return expense.Extraction{}, err
	}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return expense.Extraction{}, upstream(err, model, "extraction")
	}
	ex, err := provider.ParseExtraction(resp.Text())
	if err != nil {
		return expense.Extraction{}, vferr.With(err, vferr.FieldProvider(name), vferr.FieldModel(model))
	}
	return ex, nil
}

// Advise compares the current expense against its history.
func (p *Provider) Advise(ctx context.Context, model string, req provider.AdviceRequest) (expense.Advice, error) {
	contents, cfg, err := adviceRequest(req)
	if err != nil {
		return expense.Advice{}, err
	}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return expense.Advice{}, upstream(err, model, "advice")
	}
	adv, err := provider.ParseAdvice(resp.Text())
	if err != nil {
		return expense.Advice{}, vferr.With(err, vferr.FieldProvider(name), vferr.FieldModel(model))
	}
	return adv, nil
}

func extractionRequest(img receipt.Image) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if len(img.Data) == 0 {
		return nil, nil, vferr.New(vferr.CodeProviderRequestInvalid, "google: receipt image is empty", vferr.FieldProvider(name))
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mime),
			genai.NewPartFromText(provider.ExtractionPrompt),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   extractionSchema(),
	}
	return contents, cfg, nil
}

func adviceRequest(req provider.AdviceRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	prompt, err := provider.AdvicePrompt(req)
	if err != nil {
		return nil, nil, err
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(provider.AdviceSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    adviceSchema(),
	}
	return contents, cfg, nil
}

func extractionSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	num := &genai.Schema{Type: genai.TypeNumber}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"merchant": str,
			"amount":   num,
			"currency": str,
			"date":     {Type: genai.TypeString, Description: "YYYY-MM-DD"},
			"tax":      num,
			"category": {Type: genai.TypeString, Enum: expense.Categories},
			"items":    {Type: genai.TypeArray, Items: str},
		},
		Required: provider.ExtractionRequired,
	}
}

func adviceSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"advice":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"sentiment": {Type: genai.TypeString, Enum: provider.SentimentValues()},
		},
	}
}

func embeddingValues(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, vferr.New(vferr.CodeProviderResponseInvalid, "google: embedding response is empty", vferr.FieldProvider(name))
	}
	return append([]float32(nil), resp.Embeddings[0].Values...), nil
}

func upstream(err error, model, op string) error {
	msg := err.Error()
	if strings.Contains(msg, "API_KEY_INVALID") || strings.Contains(msg, "PERMISSION_DENIED") {
		return vferr.Wrap(err, vferr.CodeProviderKeyInvalid, "google: "+op+" rejected credentials",
			vferr.FieldProvider(name), vferr.FieldModel(model))
	}
	return vferr.Wrap(err, vferr.CodeProviderUpstreamFailure, "google: "+op+" request failed",
		vferr.FieldProvider(name), vferr.FieldModel(model))
}
