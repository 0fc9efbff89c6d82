// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/receipt"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

const (
	name             = "anthropic"
	defaultMaxTokens = 1024
)

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements extraction and advice on the Anthropic Messages API.
// Anthropic has no embedding endpoint, so it never serves that capability.
type Provider struct {
	client anthropicsdk.Client
	config Config
	health *provider.HealthTracker
}

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, vferr.New(vferr.CodeProviderRequestInvalid, "anthropic: missing api_key in config", vferr.FieldProvider(name))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeProviderRequestInvalid, "anthropic: creating health tracker")
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
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

// knownModels returns the hardcoded set of known Anthropic models.
func knownModels() []provider.ModelInfo {
	vision := []types.Capability{types.CapabilityExtraction, types.CapabilityAdvice}
	return []provider.ModelInfo{
		{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Provider: name, Capabilities: vision},
		{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", Provider: name, Capabilities: vision},
		{ID: "claude-opus-4-1", Name: "Claude Opus 4.1", Provider: name, Capabilities: vision},
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

// Extract reads expense fields from a receipt image.
func (p *Provider) Extract(ctx context.Context, model string, img receipt.Image) (expense.Extraction, error) {
	params, err := extractionParams(model, img)
	if err != nil {
		return expense.Extraction{}, err
	}
	text, err := p.send(ctx, params, "extraction")
	if err != nil {
		return expense.Extraction{}, err
	}
	ex, err := provider.ParseExtraction(text)
	if err != nil {
		return expense.Extraction{}, vferr.With(err, vferr.FieldProvider(name), vferr.FieldModel(model))
	}
	return ex, nil
}

// Advise compares the current expense against its history.
func (p *Provider) Advise(ctx context.Context, model string, req provider.AdviceRequest) (expense.Advice, error) {
	params, err := adviceParams(model, req)
	if err != nil {
		return expense.Advice{}, err
	}
	text, err := p.send(ctx, params, "advice")
	if err != nil {
		return expense.Advice{}, err
	}
	adv, err := provider.ParseAdvice(text)
	if err != nil {
		return expense.Advice{}, vferr.With(err, vferr.FieldProvider(name), vferr.FieldModel(model))
	}
	return adv, nil
}

func (p *Provider) send(ctx context.Context, params anthropicsdk.MessageNewParams, op string) (string, error) {
	model := string(params.Model)
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		fields := []vferr.Attr{vferr.FieldProvider(name), vferr.FieldModel(model)}
		var apiErr *anthropicsdk.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return "", vferr.Wrap(err, vferr.CodeProviderKeyInvalid, "anthropic: "+op+" rejected credentials", fields...)
		}
		return "", vferr.Wrap(err, vferr.CodeProviderUpstreamFailure, "anthropic: "+op+" request failed", fields...)
	}
	return responseText(msg), nil
}

func extractionParams(model string, img receipt.Image) (anthropicsdk.MessageNewParams, error) {
	if len(img.Data) == 0 {
		return anthropicsdk.MessageNewParams{}, vferr.New(vferr.CodeProviderRequestInvalid, "anthropic: receipt image is empty", vferr.FieldProvider(name))
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(
				anthropicsdk.NewImageBlockBase64(mime, img.Base64()),
				anthropicsdk.NewTextBlock(provider.ExtractionPrompt+"\n\n"+provider.SchemaInstruction(provider.ExtractionJSONSchema)),
			),
		},
	}, nil
}

func adviceParams(model string, req provider.AdviceRequest) (anthropicsdk.MessageNewParams, error) {
	prompt, err := provider.AdvicePrompt(req)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}
	return anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: defaultMaxTokens,
		System:    []anthropicsdk.TextBlockParam{{Text: provider.AdviceSystemPrompt}},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(prompt + "\n\n" + provider.SchemaInstruction(provider.AdviceJSONSchema)),
			),
		},
	}, nil
}

// responseText concatenates the text blocks of msg.
func responseText(msg *anthropicsdk.Message) string {
	if msg == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
