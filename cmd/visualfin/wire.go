// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/visualfin/visualfin/internal/analysis"
	"github.com/visualfin/visualfin/internal/config"
	"github.com/visualfin/visualfin/internal/provider"
	anthropicprov "github.com/visualfin/visualfin/internal/provider/anthropic"
	googleprov "github.com/visualfin/visualfin/internal/provider/google"
	openaiprov "github.com/visualfin/visualfin/internal/provider/openai"
	openrouterprov "github.com/visualfin/visualfin/internal/provider/openrouter"
	"github.com/visualfin/visualfin/internal/secrets"
	"github.com/visualfin/visualfin/internal/server"
	"github.com/visualfin/visualfin/internal/store"
	_ "github.com/visualfin/visualfin/internal/store/memory" // register memory backend
	_ "github.com/visualfin/visualfin/internal/store/sqlite" // register sqlite backend
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

// keyCheckClient is used by the provider key endpoint.
var keyCheckClient = &http.Client{Timeout: 10 * time.Second}

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server           *server.Server
	Expenses         store.ExpenseStore
	EmbeddingCache   store.EmbeddingCache
	ProviderRegistry *provider.Registry
	Analysis         *analysis.Service
}

// WireGateway creates all subsystems and wires them together.
// The dataDir is the root directory for all persistent state.
func WireGateway(_ context.Context, cfg *config.Config, dataDir string) (*Gateway, error) {
	if cfg.Storage.Backend != "memory" {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, vferr.Errorf(vferr.CodeCLISetupFailure, "creating data directory: %w", err)
		}
	}

	// 1. Storage: expense history plus the embedding cache.
	expenses, cache, err := store.NewStores(&store.StorageConfig{Backend: cfg.Storage.Backend}, dataDir)
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeCLISetupFailure, "creating stores")
	}
	closeStores := func() {
		_ = cache.Close()
		_ = expenses.Close()
	}

	// 2. Provider registry with per-capability routing.
	provReg := provider.NewRegistry()
	registerBuiltinProviders(cfg, provReg)
	configureRouting(cfg, provReg)

	// 3. Scan pipeline.
	svc, err := analysis.NewService(analysis.ServiceConfig{
		Models:    provReg,
		Store:     expenses,
		Cache:     cache,
		Ranker:    cfg.Retrieval.Ranker(),
		KeepImage: cfg.Receipts.KeepImage,
	})
	if err != nil {
		closeStores()
		return nil, vferr.Wrapf(err, vferr.CodeCLISetupFailure, "creating analysis service")
	}

	// 4. HTTP server.
	services, err := server.NewServices(svc, expenses, provReg)
	if err != nil {
		closeStores()
		return nil, vferr.Wrapf(err, vferr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Networking.RateLimitRPS,
			Burst:             cfg.Networking.RateLimitBurst,
		},
		ReceiptMaxSide: cfg.Receipts.MaxSide,
		Version:        version,
		Services:       services,
		ConfigDeps: &server.ConfigDeps{
			Secrets:          secretStoreFactory(),
			ValidateProvider: server.DefaultProviderKeyValidator(keyCheckClient),
		},
	})
	if err != nil {
		closeStores()
		return nil, vferr.Wrapf(err, vferr.CodeCLISetupFailure, "creating server")
	}

	return &Gateway{
		Server:           srv,
		Expenses:         expenses,
		EmbeddingCache:   cache,
		ProviderRegistry: provReg,
		Analysis:         svc,
	}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (gw *Gateway) Start(ctx context.Context) error {
	return gw.Server.Start(ctx)
}

// Close releases all resources held by the gateway.
func (gw *Gateway) Close() error {
	type closer interface{ Close() error }
	closers := []closer{gw.Server, gw.ProviderRegistry, gw.EmbeddingCache, gw.Expenses}

	var errs []error
	for _, c := range closers {
		if c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject failing factories.
var builtinProviderFactories = map[string]providerFactory{
	"anthropic": func(pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openai": func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openrouter": func(pc config.ProviderConfig) (provider.Provider, error) {
		return openrouterprov.New(openrouterprov.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.Endpoint,
			Referer: "https://github.com/visualfin/visualfin",
			Title:   "VisualFin",
		})
	},
}

// registerBuiltinProviders iterates configured providers and registers
// matching built-in implementations. Unknown names, empty API keys and
// unresolved keyring references are logged and skipped.
func registerBuiltinProviders(cfg *config.Config, reg *provider.Registry) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			slog.Warn("skipping provider with empty API key", "provider", name)
			continue
		}
		if secrets.IsKeyringURI(pc.APIKey) {
			slog.Warn("skipping provider whose API key is not in the keyring",
				"provider", name, "hint", "visualfin secret set "+name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Info("registered provider", "provider", name)
	}
}

// configureRouting sets the default ref and failover chain for every
// capability. A capability whose default cannot be served is left
// unrouted, so requests that need it fail with a clear error while the
// rest of the API keeps working. Each capability only gets its own
// models.failover list; refs whose provider is not registered or lacks
// the capability are dropped with a warning.
func configureRouting(cfg *config.Config, reg *provider.Registry) {
	for _, c := range types.Capabilities {
		ref := cfg.Models.Ref(c)
		if err := reg.SetDefault(c, ref); err != nil {
			slog.Warn("capability has no usable default model",
				"capability", c, "ref", ref, "error", err)
			continue
		}

		var chain []string
		for _, fref := range cfg.Models.Failover.Chain(c) {
			name, _ := provider.ParseRef(fref)
			p, err := reg.Get(name)
			if err != nil || !provider.Supports(p, c) {
				slog.Warn("dropping failover ref", "capability", c, "ref", fref)
				continue
			}
			chain = append(chain, fref)
		}
		if len(chain) == 0 {
			continue
		}
		if err := reg.SetFailover(c, chain); err != nil {
			slog.Warn("ignoring failover chain", "capability", c, "error", err)
		}
	}
}
