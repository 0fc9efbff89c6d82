// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package provider_test

import (
	"context"
	"sync"
	"time"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/receipt"
)

// fakeBase implements provider.Provider. Embed it in capability fakes.
type fakeBase struct {
	name      string
	available bool
	closeErr  error

	mu    sync.Mutex
	calls []string // models requested, in order
}

func newFakeBase(name string, available bool) *fakeBase {
	return &fakeBase{name: name, available: available}
}

func (f *fakeBase) Name() string { return f.name }
func (f *fakeBase) Available(context.Context) bool { return f.available }
func (f *fakeBase) Close() error { return f.closeErr }
func (f *fakeBase) ListModels(context.Context) ([]provider.ModelInfo, error) { return nil, nil }

func (f *fakeBase) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: f.available, Provider: f.name, Message: "ok"}, nil
}

func (f *fakeBase) record(model string) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.mu.Unlock()
}

func (f *fakeBase) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeEmbedder only embeds.
type fakeEmbedder struct {
	*fakeBase
	embed func(model, text string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(_ context.Context, model, text string) ([]float32, error) {
	f.record(model)
	if f.embed == nil {
		return []float32{1, 0}, nil
	}
	return f.embed(model, text)
}

// fakeFull serves every capability and tracks its own health.
type fakeFull struct {
	*fakeBase
	tracker *provider.HealthTracker

	embed   func(model, text string) ([]float32, error)
	extract func(model string, img receipt.Image) (expense.Extraction, error)
	advise  func(model string, req provider.AdviceRequest) (expense.Advice, error)
}

func newFakeFull(name string) *fakeFull {
	tracker, err := provider.NewHealthTracker(time.Minute)
	if err != nil {
		panic(err)
	}
	return &fakeFull{fakeBase: newFakeBase(name, true), tracker: tracker}
}

func (f *fakeFull) Available(context.Context) bool { return f.available && f.tracker.IsHealthy() }
func (f *fakeFull) RecordFailure() { f.tracker.RecordFailure() }
func (f *fakeFull) RecordSuccess() { f.tracker.RecordSuccess() }

func (f *fakeFull) HealthMetrics() provider.HealthMetrics { return f.tracker.HealthMetrics() }

func (f *fakeFull) Embed(_ context.Context, model, text string) ([]float32, error) {
	f.record(model)
	if f.embed == nil {
		return []float32{0, 1}, nil
	}
	return f.embed(model, text)
}

func (f *fakeFull) Extract(_ context.Context, model string, img receipt.Image) (expense.Extraction, error) {
	f.record(model)
	if f.extract == nil {
		return expense.Extraction{Merchant: f.name}, nil
	}
	return f.extract(model, img)
}

func (f *fakeFull) Advise(_ context.Context, model string, req provider.AdviceRequest) (expense.Advice, error) {
	f.record(model)
	if f.advise == nil {
		return expense.Advice{Points: []string{f.name}}, nil
	}
	return f.advise(model, req)
}
