// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package analysis runs the receipt scan pipeline: extract the fields,
// embed the canonical text, rank history by similarity, then ask for
// advice. It also serves semantic search over stored expenses.
package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/receipt"
	"github.com/visualfin/visualfin/internal/retrieval"
	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

// Models is the part of *provider.Registry the pipeline calls.
type Models interface {
	Extract(ctx context.Context, img receipt.Image) (expense.Extraction, error)
	Embed(ctx context.Context, text string) ([]float32, string, error)
	Advise(ctx context.Context, req provider.AdviceRequest) (expense.Advice, error)
	DefaultRef(c types.Capability) string
}

// Analysis is the reviewable result of a scan. Nothing is stored until
// the user confirms it.
type Analysis struct {
	Extracted expense.Extraction `json:"extracted"`
	// Text is the canonical string that was embedded.
	Text string `json:"text"`
	// Embedding is empty when the embedding call failed.
	Embedding      []float32          `json:"embedding,omitempty"`
	EmbeddingModel string             `json:"embeddingModel,omitempty"`
	Advice         expense.Advice     `json:"advice"`
	Similar        []retrieval.Result `json:"similar"`
}

// Hooks are optional callbacks fired after each pipeline stage.
type Hooks struct {
	OnExtract func()
	OnEmbed   func()
	OnRank    func()
	OnAdvise  func()
}

// ServiceConfig holds the dependencies for a Service.
type ServiceConfig struct {
	Models Models
	Store  store.ExpenseStore
	// Cache is optional; without it every scan calls the embedding model.
	Cache  store.EmbeddingCache
	Ranker retrieval.Ranker
	// KeepImage stores the receipt data URL on confirmed records.
	KeepImage bool
	Now       func() time.Time
	Hooks     *Hooks
}

// Service runs scans and searches. It is safe for concurrent use when its
// collaborators are.
type Service struct {
	models    Models
	store     store.ExpenseStore
	cache     store.EmbeddingCache
	ranker    retrieval.Ranker
	keepImage bool
	now       func() time.Time
	hooks     *Hooks
}

// NewService creates a Service. Models and Store are required.
func NewService(cfg ServiceConfig) (*Service, error) {
	var missing []string
	if cfg.Models == nil {
		missing = append(missing, "Models")
	}
	if cfg.Store == nil {
		missing = append(missing, "Store")
	}
	if len(missing) > 0 {
		return nil, vferr.Errorf(vferr.CodeConfigValidateInvalidValue, "analysis: missing dependencies %v", missing)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		models:    cfg.Models,
		store:     cfg.Store,
		cache:     cfg.Cache,
		ranker:    cfg.Ranker,
		keepImage: cfg.KeepImage,
		now:       now,
		hooks:     cfg.Hooks,
	}, nil
}

// Analyze scans a receipt. Extraction failures abort the scan; embedding
// and advice failures degrade to an empty vector and fallback advice.
func (s *Service) Analyze(ctx context.Context, img receipt.Image) (*Analysis, error) {
	extracted, err := s.models.Extract(ctx, img)
	if err != nil {
		return nil, err
	}
	s.fire(func(h *Hooks) func() { return h.OnExtract })

	text := retrieval.Canonicalize(extracted.Merchant, extracted.Category, extracted.Items)
	vec, ref := s.embed(ctx, text)
	s.fire(func(h *Hooks) func() { return h.OnEmbed })

	history, err := s.store.List(ctx, store.ListOpts{})
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeAnalysisPipelineFailure, "analysis: loading history")
	}
	similar := s.ranker.Rank(vec, history)
	s.fire(func(h *Hooks) func() { return h.OnRank })

	advice, err := s.models.Advise(ctx, provider.AdviceRequest{Current: extracted, Similar: expensesOf(similar)})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("advice unavailable", "error", err)
		advice = cloneAdvice(expense.AdviceUnavailable)
	}
	s.fire(func(h *Hooks) func() { return h.OnAdvise })

	return &Analysis{
		Extracted:      extracted,
		Text:           text,
		Embedding:      vec,
		EmbeddingModel: ref,
		Advice:         advice,
		Similar:        similar,
	}, nil
}

// Confirm builds the record for a reviewed analysis and appends it.
// receiptImage is dropped unless the service keeps images.
func (s *Service) Confirm(ctx context.Context, a *Analysis, receiptImage string) (*expense.Expense, error) {
	if a == nil {
		return nil, vferr.New(vferr.CodeAnalysisInputInvalid, "analysis: nothing to confirm")
	}
	if !s.keepImage {
		receiptImage = ""
	}
	e := expense.New(a.Extracted, a.Embedding, receiptImage, s.now())
	e.Description = a.Text
	if e.Description == "" {
		e.Description = retrieval.Canonicalize(e.Merchant, e.Category, e.Items)
	}
	if err := s.store.Append(ctx, e); err != nil {
		return nil, err
	}
	slog.Info("expense confirmed",
		"expense_id", e.ID,
		"merchant", e.Merchant,
		"embedded", e.HasEmbedding(),
	)
	return e, nil
}

// FindSimilar embeds text as given and ranks stored expenses against it.
// k <= 0 uses the configured limit.
func (s *Service) FindSimilar(ctx context.Context, text string, k int) ([]retrieval.Result, error) {
	if text == "" {
		return nil, vferr.New(vferr.CodeAnalysisInputInvalid, "analysis: search text is empty")
	}
	vec, _, err := s.embedStrict(ctx, text)
	if err != nil {
		return nil, err
	}
	history, err := s.store.List(ctx, store.ListOpts{})
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeAnalysisPipelineFailure, "analysis: loading history")
	}
	return s.ranker.RankK(vec, history, k), nil
}

// FindSimilarTo ranks stored expenses against the record with id,
// excluding that record.
func (s *Service) FindSimilarTo(ctx context.Context, id string, k int) ([]retrieval.Result, error) {
	target, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.store.List(ctx, store.ListOpts{})
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeAnalysisPipelineFailure, "analysis: loading history")
	}
	others := history[:0]
	for _, e := range history {
		if e.ID != target.ID {
			others = append(others, e)
		}
	}
	return s.ranker.RankK(target.Embedding, others, k), nil
}

// embed returns the vector for text, or nil when it cannot be produced.
func (s *Service) embed(ctx context.Context, text string) ([]float32, string) {
	vec, ref, err := s.embedStrict(ctx, text)
	if err != nil {
		slog.Warn("embedding unavailable, continuing without similarity", "error", err)
		return nil, ""
	}
	return vec, ref
}

func (s *Service) embedStrict(ctx context.Context, text string) ([]float32, string, error) {
	hash := store.ContentHash(text)
	ref := s.models.DefaultRef(types.CapabilityEmbedding)

	if s.cache != nil && ref != "" {
		vec, ok, err := s.cache.Get(ctx, ref, hash)
		switch {
		case err != nil:
			slog.Debug("embedding cache read failed", "model", ref, "error", err)
		case ok:
			return vec, ref, nil
		}
	}

	vec, used, err := s.models.Embed(ctx, text)
	if err != nil {
		return nil, "", err
	}
	if s.cache != nil && used != "" {
		if err := s.cache.Put(ctx, used, hash, vec); err != nil {
			slog.Debug("embedding cache write failed", "model", used, "error", err)
		}
	}
	return vec, used, nil
}

func (s *Service) fire(pick func(*Hooks) func()) {
	if s.hooks == nil {
		return
	}
	if fn := pick(s.hooks); fn != nil {
		fn()
	}
}

func expensesOf(results []retrieval.Result) []*expense.Expense {
	out := make([]*expense.Expense, len(results))
	for i, r := range results {
		out[i] = r.Expense
	}
	return out
}

func cloneAdvice(a expense.Advice) expense.Advice {
	a.Points = append([]string(nil), a.Points...)
	return a
}
