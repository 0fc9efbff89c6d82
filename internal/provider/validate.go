// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// ProviderName identifies a supported model provider.
type ProviderName string

const (
	ProviderAnthropic  ProviderName = "anthropic"
	ProviderOpenAI     ProviderName = "openai"
	ProviderGoogle     ProviderName = "google"
	ProviderOpenRouter ProviderName = "openrouter"
)

// ProviderNames lists every provider the gateway can configure.
var ProviderNames = []ProviderName{ProviderGoogle, ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic}

// ParseProviderName returns the ProviderName for s, or an error if unknown.
func ParseProviderName(s string) (ProviderName, error) {
	name := ProviderName(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ProviderNames {
		if name == known {
			return name, nil
		}
	}
	return "", vferr.Errorf(vferr.CodeProviderKeyInvalid, "unknown provider: %s", s)
}

var modelsBaseURL = map[ProviderName]string{
	ProviderAnthropic:  "https://api.anthropic.com/v1",
	ProviderOpenAI:     "https://api.openai.com/v1",
	ProviderGoogle:     "https://generativelanguage.googleapis.com/v1beta",
	ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

// ValidateKey makes a lightweight call to the provider's models endpoint
// to confirm the API key is accepted.
func ValidateKey(ctx context.Context, client *http.Client, provider ProviderName, key string) error {
	return ValidateKeyAt(ctx, client, provider, key, "")
}

// ValidateKeyAt is ValidateKey against baseURL instead of the provider's
// public endpoint. An empty baseURL selects the default.
func ValidateKeyAt(ctx context.Context, client *http.Client, provider ProviderName, key, baseURL string) error {
	def, ok := modelsBaseURL[provider]
	if !ok {
		return vferr.Errorf(vferr.CodeProviderKeyInvalid, "unknown provider: %s", provider)
	}
	if strings.TrimSpace(key) == "" {
		return vferr.Errorf(vferr.CodeProviderKeyInvalid, "%s API key is empty", provider)
	}
	if baseURL == "" {
		baseURL = def
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return vferr.Errorf(vferr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
	}
	switch provider {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", "2023-06-01")
	case ProviderGoogle:
		// The Generative Language API takes the key as a query parameter.
		q := url.Values{"key": []string{key}}
		req.URL.RawQuery = q.Encode()
	default:
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return vferr.Errorf(vferr.CodeProviderKeyCheckFailed, "validating %s key: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return vferr.Errorf(vferr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", provider, resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest && provider == ProviderGoogle:
		// Google answers a malformed key with 400 API_KEY_INVALID.
		return vferr.Errorf(vferr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", provider, resp.StatusCode)
	case resp.StatusCode >= 400:
		return vferr.Errorf(vferr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", provider, resp.StatusCode)
	}
	return nil
}
