// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package expense

import (
	"github.com/shopspring/decimal"

	"github.com/visualfin/visualfin/pkg/types"
)

// Extraction holds the fields a model read from a receipt. Every field is
// optional; New fills the gaps when the record is confirmed.
type Extraction struct {
	Merchant string           `json:"merchant,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Currency string           `json:"currency,omitempty"`
	Date     string           `json:"date,omitempty"`
	Tax      *decimal.Decimal `json:"tax,omitempty"`
	Category string           `json:"category,omitempty"`
	Items    []string         `json:"items,omitempty"`
}

// Advice is the short list of comparative tips shown after a scan.
type Advice struct {
	Points    []string        `json:"advice"`
	Sentiment types.Sentiment `json:"sentiment"`
}

// Fallback advice used when the model gives nothing usable.
var (
	AdviceEmpty       = Advice{Points: []string{"Track your spending carefully."}, Sentiment: types.SentimentNeutral}
	AdviceUnavailable = Advice{Points: []string{"Could not generate insights at this time."}, Sentiment: types.SentimentNeutral}
)
