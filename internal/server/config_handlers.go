// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/secrets"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// ProviderKeyValidator validates an API key for a given provider.
type ProviderKeyValidator func(ctx context.Context, providerName provider.ProviderName, key string) error

// ConfigDeps holds dependencies for configuration endpoints.
type ConfigDeps struct {
	Secrets          secrets.Store
	ValidateProvider ProviderKeyValidator
}

// DefaultProviderKeyValidator returns a ProviderKeyValidator that calls the
// provider's models endpoint.
func DefaultProviderKeyValidator(client *http.Client) ProviderKeyValidator {
	return func(ctx context.Context, providerName provider.ProviderName, key string) error {
		return provider.ValidateKey(ctx, client, providerName, key)
	}
}

type configureProviderInput struct {
	Body struct {
		Type   string `json:"type" doc:"Provider type" enum:"google,openai,openrouter,anthropic" required:"true"`
		APIKey string `json:"api_key" doc:"Provider API key" minLength:"1" required:"true"`
	}
}

type configureProviderOutput struct {
	Body struct {
		Status   string `json:"status" doc:"Result status" example:"ok"`
		Provider string `json:"provider" doc:"Configured provider type"`
		KeyRef   string `json:"key_ref" doc:"Value to use as providers.<type>.api_key" example:"keyring://visualfin/google"`
	}
}

func (s *Server) registerConfigRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "configure-provider",
		Method:      http.MethodPost,
		Path:        "/api/v1/config/providers",
		Summary:     "Validate and store a provider API key",
		Description: "The key is kept in the OS keyring. Reference it from the config file and restart to use it.",
		Tags:        []string{"config"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, s.handleConfigureProvider)
}

func (s *Server) handleConfigureProvider(ctx context.Context, input *configureProviderInput) (*configureProviderOutput, error) {
	if s.configDeps == nil || s.configDeps.Secrets == nil || s.configDeps.ValidateProvider == nil {
		slog.Error("config endpoints called but ConfigDeps not configured")
		return nil, huma.Error503ServiceUnavailable("configuration service not available")
	}

	name, err := provider.ParseProviderName(input.Body.Type)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	if err := s.configDeps.ValidateProvider(ctx, name, input.Body.APIKey); err != nil {
		if vferr.HasCode(err, vferr.CodeProviderKeyInvalid) {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid %s API key", name))
		}
		slog.Error("provider key validation failed",
			"provider", name,
			"error", err,
		)
		return nil, huma.Error502BadGateway(fmt.Sprintf("could not validate %s API key", name))
	}

	if err := s.configDeps.Secrets.Store(secrets.ServiceName, string(name), input.Body.APIKey); err != nil {
		slog.Error("failed to store provider key in keyring",
			"provider", name,
			"error", err,
		)
		return nil, huma.Error500InternalServerError("failed to store API key")
	}

	slog.Info("provider API key configured", "provider", name)

	out := &configureProviderOutput{}
	out.Body.Status = "ok"
	out.Body.Provider = string(name)
	out.Body.KeyRef = secrets.ProviderKeyURI(string(name))
	return out, nil
}
