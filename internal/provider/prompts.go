// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package provider

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/visualfin/visualfin/internal/expense"
	vferr "github.com/visualfin/visualfin/pkg/errors"
	"github.com/visualfin/visualfin/pkg/types"
)

// ExtractionPrompt instructs a multimodal model to read a receipt.
var ExtractionPrompt = "Analyze this receipt image. Extract the merchant name, total amount, currency, " +
	"date (YYYY-MM-DD format), tax amount, and a list of purchased items. " +
	"Also, categorize this expense into one of: " + quoteList(expense.Categories) + ".\n\n" +
	"Return ONLY a valid JSON object."

// AdviceSystemPrompt sets the persona for advice calls.
const AdviceSystemPrompt = "Act as a proactive, intelligent financial analyst."

// ExtractionRequired lists the fields the extraction schema marks required.
var ExtractionRequired = []string{"merchant", "amount", "date", "category"}

// ExtractionJSONSchema describes the extraction output for providers that
// take the schema as text.
var ExtractionJSONSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"merchant": map[string]any{"type": "string"},
		"amount":   map[string]any{"type": "number"},
		"currency": map[string]any{"type": "string"},
		"date":     map[string]any{"type": "string", "description": "YYYY-MM-DD"},
		"tax":      map[string]any{"type": "number"},
		"category": map[string]any{"type": "string"},
		"items":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": ExtractionRequired,
}

// AdviceJSONSchema describes the advice output.
var AdviceJSONSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"advice":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"sentiment": map[string]any{"type": "string", "enum": SentimentValues()},
	},
}

// SentimentValues returns the sentiment enum as strings.
func SentimentValues() []string {
	out := make([]string, len(types.Sentiments))
	for i, s := range types.Sentiments {
		out[i] = string(s)
	}
	return out
}

type adviceCurrent struct {
	Merchant string           `json:"merchant,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Currency string           `json:"currency,omitempty"`
	Category string           `json:"category,omitempty"`
	Date     string           `json:"date,omitempty"`
	Items    []string         `json:"items,omitempty"`
}

type adviceHistory struct {
	Merchant string          `json:"merchant"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date"`
	Category string          `json:"category"`
}

// AdvicePrompt renders the advice task for req.
func AdvicePrompt(req AdviceRequest) (string, error) {
	current, err := json.Marshal(adviceCurrent{
		Merchant: req.Current.Merchant,
		Amount:   req.Current.Amount,
		Currency: req.Current.Currency,
		Category: req.Current.Category,
		Date:     req.Current.Date,
		Items:    req.Current.Items,
	})
	if err != nil {
		return "", vferr.Errorf(vferr.CodeProviderRequestInvalid, "encoding current expense: %w", err)
	}

	history := make([]adviceHistory, 0, len(req.Similar))
	for _, e := range req.Similar {
		if e == nil {
			continue
		}
		history = append(history, adviceHistory{Merchant: e.Merchant, Amount: e.Amount, Date: e.Date, Category: e.Category})
	}
	hist, err := json.Marshal(history)
	if err != nil {
		return "", vferr.Errorf(vferr.CodeProviderRequestInvalid, "encoding history: %w", err)
	}

	var b strings.Builder
	b.WriteString("New Expense Context:\n")
	b.Write(current)
	b.WriteString("\n\nSimilar Historical Expenses (found via semantic search):\n")
	b.Write(hist)
	b.WriteString("\n\nTask:\n")
	b.WriteString("1. Compare the new expense to the history (price trends, frequency).\n")
	b.WriteString("2. Identify if this is higher than usual, a recurring subscription, or a good deal.\n")
	b.WriteString("3. Provide 3 short, actionable bullet points of advice or insight.\n")
	b.WriteString("4. Determine a sentiment/status (" + strings.Join(SentimentValues(), ", ") + ").\n")
	return b.String(), nil
}

// SchemaInstruction renders schema as a trailing instruction for models
// without native structured output.
func SchemaInstruction(schema map[string]any) string {
	raw, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	return "Respond with a single JSON object matching this JSON Schema, with no prose and no code fences:\n" + string(raw)
}

// ParseExtraction decodes a model's JSON reply into an Extraction.
func ParseExtraction(text string) (expense.Extraction, error) {
	var ex expense.Extraction
	body := stripFences(text)
	if body == "" {
		return ex, vferr.New(vferr.CodeProviderResponseInvalid, "extraction response is empty")
	}
	if err := json.Unmarshal([]byte(body), &ex); err != nil {
		return expense.Extraction{}, vferr.Errorf(vferr.CodeProviderResponseInvalid, "decoding extraction: %w", err)
	}
	return ex, nil
}

// ParseAdvice decodes a model's JSON reply into Advice. Missing points
// fall back to expense.AdviceEmpty and unknown sentiments become neutral.
func ParseAdvice(text string) (expense.Advice, error) {
	var raw struct {
		Advice    []string `json:"advice"`
		Sentiment string   `json:"sentiment"`
	}
	body := stripFences(text)
	if body == "" {
		body = "{}"
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return expense.Advice{}, vferr.Errorf(vferr.CodeProviderResponseInvalid, "decoding advice: %w", err)
	}

	points := make([]string, 0, len(raw.Advice))
	for _, p := range raw.Advice {
		if p = strings.TrimSpace(p); p != "" {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		points = append(points, expense.AdviceEmpty.Points...)
	}
	return expense.Advice{Points: points, Sentiment: types.ParseSentiment(raw.Sentiment)}, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "'" + it + "'"
	}
	return strings.Join(quoted, ", ")
}
