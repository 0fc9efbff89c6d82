// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package types

import "strings"

// Sentiment is the overall tone of the advice produced for an expense.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentWarning  Sentiment = "warning"
)

// Sentiments lists every known sentiment in display order.
var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative, SentimentWarning}

// Valid reports whether s is a recognized sentiment.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentWarning:
		return true
	default:
		return false
	}
}

// ParseSentiment maps model output onto the closed set. Anything
// unrecognized collapses to neutral.
func ParseSentiment(s string) Sentiment {
	v := Sentiment(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return SentimentNeutral
	}
	return v
}
