// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package provider

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/receipt"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

// Registry manages provider registration, lookup, and per-capability
// routing with failover.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaults map[types.Capability]string   // "provider/model" per capability
	failover map[types.Capability][]string // ordered "provider/model" refs
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		defaults:  make(map[types.Capability]string),
		failover:  make(map[types.Capability][]string),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, vferr.New(
			vferr.CodeProviderNotFound,
			"provider not found: "+name,
			vferr.FieldProvider(name),
		)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault sets the "provider/model" ref that serves capability c.
// The provider must be registered and implement the capability.
func (r *Registry) SetDefault(c types.Capability, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRefLocked(c, ref); err != nil {
		return err
	}
	r.defaults[c] = ref
	return nil
}

// SetFailover sets the ordered failover chain for capability c. Refs whose
// provider is not registered or lacks the capability are rejected.
func (r *Registry) SetFailover(c types.Capability, chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.checkRefLocked(c, ref); err != nil {
			return err
		}
	}
	r.failover[c] = append([]string(nil), chain...)
	return nil
}

// DefaultRef returns the configured ref for capability c, or "".
func (r *Registry) DefaultRef(c types.Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[c]
}

// Failover returns a copy of the failover chain for capability c.
func (r *Registry) Failover(c types.Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.failover[c])
}

// MaxAttempts returns 1 (primary) + len(failover chain) for capability c.
func (r *Registry) MaxAttempts(c types.Capability) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover[c])
}

// Route selects a provider for capability c. Refs named in exclude are
// skipped, which lets callers walk the failover chain after a failed
// call. It returns the provider and the model portion of the chosen ref.
// A provider that tracks its health is unavailable during its cooldown, so
// after one of its models fails its other refs are skipped as well.
func (r *Registry) Route(ctx context.Context, c types.Capability, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref := r.defaults[c]
	if ref == "" {
		return nil, "", vferr.New(
			vferr.CodeProviderNoDefault,
			"no default provider configured for "+string(c),
		)
	}

	for _, candidate := range append([]string{ref}, r.failover[c]...) {
		if slices.Contains(exclude, candidate) {
			continue
		}
		p, model, err := r.tryRef(ctx, c, candidate)
		if err == nil {
			return p, model, nil
		}
	}

	return nil, "", vferr.New(
		vferr.CodeProviderAllUnavailable,
		"all providers unavailable for "+string(c),
	)
}

// Embed routes an embedding call with failover. It returns the vector and
// the "provider/model" ref that produced it.
func (r *Registry) Embed(ctx context.Context, text string) ([]float32, string, error) {
	var ref string
	vec, err := withFailover(ctx, r, types.CapabilityEmbedding, func(p Provider, model string) ([]float32, error) {
		ref = p.Name() + "/" + model
		return p.(Embedder).Embed(ctx, model, text)
	})
	return vec, ref, err
}

// Extract routes an extraction call with failover.
func (r *Registry) Extract(ctx context.Context, img receipt.Image) (expense.Extraction, error) {
	return withFailover(ctx, r, types.CapabilityExtraction, func(p Provider, model string) (expense.Extraction, error) {
		return p.(Extractor).Extract(ctx, model, img)
	})
}

// Advise routes an advice call with failover.
func (r *Registry) Advise(ctx context.Context, req AdviceRequest) (expense.Advice, error) {
	return withFailover(ctx, r, types.CapabilityAdvice, func(p Provider, model string) (expense.Advice, error) {
		return p.(Advisor).Advise(ctx, model, req)
	})
}

// Health returns the health snapshot of every provider that reports one.
func (r *Registry) Health() map[string]HealthMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]HealthMetrics, len(r.providers))
	for name, p := range r.providers {
		if hr, ok := p.(HealthReporter); ok {
			out[name] = hr.HealthMetrics()
		}
	}
	return out
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return vferr.Join(errs...)
	}
	return nil
}

// withFailover calls fn on the routed provider and, on failure, on each
// remaining candidate until one succeeds or the chain is exhausted.
func withFailover[T any](ctx context.Context, r *Registry, c types.Capability, fn func(Provider, string) (T, error)) (T, error) {
	var (
		zero    T
		tried   []string
		lastErr error
	)
	for range r.MaxAttempts(c) {
		p, model, err := r.Route(ctx, c, tried)
		if err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}
		tried = append(tried, p.Name()+"/"+model)

		out, err := fn(p, model)
		if err == nil {
			if hr, ok := p.(HealthReporter); ok {
				hr.RecordSuccess()
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}

		slog.Warn("provider call failed",
			"capability", string(c),
			"provider", p.Name(),
			"model", model,
			"error", err,
		)
		if hr, ok := p.(HealthReporter); ok {
			hr.RecordFailure()
		}
		lastErr = err
	}
	if lastErr != nil {
		return zero, lastErr
	}
	return zero, vferr.New(vferr.CodeProviderAllUnavailable, "all providers unavailable for "+string(c))
}

// checkRefLocked validates a ref for capability c. Caller must hold r.mu.
func (r *Registry) checkRefLocked(c types.Capability, ref string) error {
	name, model := ParseRef(ref)
	if name == "" || model == "" {
		return vferr.Errorf(vferr.CodeProviderInvalidModelRef,
			"model %q must use provider/model format", ref)
	}
	p, ok := r.providers[name]
	if !ok {
		return vferr.New(
			vferr.CodeProviderNotFound,
			"provider not registered: "+name,
			vferr.FieldProvider(name),
		)
	}
	if !Supports(p, c) {
		return vferr.New(
			vferr.CodeProviderCapabilityAbsent,
			name+" does not support "+string(c),
			vferr.FieldProvider(name),
		)
	}
	return nil
}

// tryRef looks up the provider for ref and checks availability. Caller
// must hold r.mu (at least RLock).
func (r *Registry) tryRef(ctx context.Context, c types.Capability, ref string) (Provider, string, error) {
	name, model := ParseRef(ref)

	p, ok := r.providers[name]
	if !ok {
		return nil, "", vferr.New(
			vferr.CodeProviderNotFound,
			"provider not found: "+name,
			vferr.FieldProvider(name),
		)
	}
	if !Supports(p, c) {
		return nil, "", vferr.New(
			vferr.CodeProviderCapabilityAbsent,
			name+" does not support "+string(c),
			vferr.FieldProvider(name),
		)
	}
	if !p.Available(ctx) {
		return nil, "", vferr.New(
			vferr.CodeProviderUpstreamFailure,
			"provider unavailable: "+name,
			vferr.FieldProvider(name),
		)
	}
	return p, model, nil
}

// ParseRef splits a "provider/model" reference on the first "/".
func ParseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
