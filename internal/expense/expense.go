// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package expense defines the expense record and the receipt fields a
// model extracts for it.
package expense

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// DateLayout is the calendar date format used for Expense.Date. Dates in
// this layout sort lexicographically in chronological order.
const DateLayout = "2006-01-02"

// Defaults applied when an extraction leaves a field empty.
const (
	DefaultMerchant = "Unknown"
	DefaultCurrency = "USD"
	DefaultCategory = "Uncategorized"
)

// Categories are the categories suggested to the extraction model.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Utilities",
	"Entertainment",
	"Health",
	"Travel",
	"Business",
}

// Expense is one recorded purchase. Records are immutable once stored.
type Expense struct {
	ID           string           `json:"id"`
	Merchant     string           `json:"merchant"`
	Amount       decimal.Decimal  `json:"amount"`
	Currency     string           `json:"currency"`
	Date         string           `json:"date"`
	Category     string           `json:"category"`
	Tax          *decimal.Decimal `json:"tax,omitempty"`
	Items        []string         `json:"items,omitempty"`
	Description  string           `json:"description,omitempty"`
	Embedding    []float32        `json:"embedding,omitempty"`
	ReceiptImage string           `json:"receiptImage,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// HasEmbedding reports whether the record carries a usable vector.
func (e *Expense) HasEmbedding() bool {
	return e != nil && len(e.Embedding) > 0
}

// Validate checks that the Expense has all required fields set correctly.
func (e Expense) Validate() error {
	if e.ID == "" {
		return vferr.New(vferr.CodeExpenseValidateInvalid, "expense: ID is required")
	}
	if e.Amount.IsNegative() {
		return vferr.Errorf(vferr.CodeExpenseValidateInvalid,
			"expense: amount must be >= 0, got %s", e.Amount)
	}
	if e.Tax != nil && e.Tax.IsNegative() {
		return vferr.Errorf(vferr.CodeExpenseValidateInvalid,
			"expense: tax must be >= 0, got %s", e.Tax)
	}
	if !ValidDate(e.Date) {
		return vferr.Errorf(vferr.CodeExpenseValidateInvalid,
			"expense: date must be YYYY-MM-DD, got %q", e.Date)
	}
	if !validCurrency(e.Currency) {
		return vferr.Errorf(vferr.CodeExpenseValidateInvalid,
			"expense: currency must be a 3-letter code, got %q", e.Currency)
	}
	return nil
}

// Clone returns a deep copy so callers can hand records out without
// sharing backing arrays.
func (e *Expense) Clone() *Expense {
	if e == nil {
		return nil
	}
	c := *e
	c.Items = slices.Clone(e.Items)
	c.Embedding = slices.Clone(e.Embedding)
	if e.Tax != nil {
		tax := *e.Tax
		c.Tax = &tax
	}
	return &c
}

// ValidDate reports whether s is a real calendar date in DateLayout.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func validCurrency(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// New builds the record stored when a user confirms a scan. Empty
// extracted fields fall back to the package defaults and the date falls
// back to now.
func New(ex Extraction, embedding []float32, receiptImage string, now time.Time) *Expense {
	e := &Expense{
		ID:           uuid.NewString(),
		Merchant:     strings.TrimSpace(ex.Merchant),
		Amount:       decimal.Zero,
		Currency:     strings.ToUpper(strings.TrimSpace(ex.Currency)),
		Date:         strings.TrimSpace(ex.Date),
		Category:     strings.TrimSpace(ex.Category),
		Items:        slices.Clone(ex.Items),
		Embedding:    slices.Clone(embedding),
		ReceiptImage: receiptImage,
		CreatedAt:    now.UTC(),
	}
	if ex.Amount != nil {
		e.Amount = *ex.Amount
	}
	if ex.Tax != nil {
		tax := *ex.Tax
		e.Tax = &tax
	}
	if e.Merchant == "" {
		e.Merchant = DefaultMerchant
	}
	if !validCurrency(e.Currency) {
		e.Currency = DefaultCurrency
	}
	if !ValidDate(e.Date) {
		e.Date = now.Format(DateLayout)
	}
	if e.Category == "" {
		e.Category = DefaultCategory
	}
	return e
}
