// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/retrieval"
	"github.com/visualfin/visualfin/pkg/types"
)

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

func sentimentStyle(s types.Sentiment) lipgloss.Style {
	switch s {
	case types.SentimentPositive:
		return successStyle
	case types.SentimentWarning:
		return warnStyle
	case types.SentimentNegative:
		return errorStyle
	default:
		return dimStyle
	}
}

func formatMoney(amount decimal.Decimal, currency string) string {
	return strings.TrimSpace(amount.StringFixed(2) + " " + currency)
}

func formatOptionalMoney(amount *decimal.Decimal, currency string) string {
	if amount == nil {
		return "-"
	}
	return formatMoney(*amount, currency)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// printExpenseTable writes expenses as an aligned table.
func printExpenseTable(w io.Writer, expenses []*expense.Expense) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tDATE\tMERCHANT\tCATEGORY\tAMOUNT")
	for _, e := range expenses {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Merchant, e.Category, formatMoney(e.Amount, e.Currency))
	}
	return tw.Flush()
}

// printResults writes ranked results best first.
func printResults(w io.Writer, results []retrieval.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No similar expenses found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SCORE\tID\tDATE\tMERCHANT\tCATEGORY\tAMOUNT")
	for _, r := range results {
		e := r.Expense
		if e == nil {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\t%s\t%s\n",
			r.Score, e.ID, e.Date, e.Merchant, e.Category, formatMoney(e.Amount, e.Currency))
	}
	return tw.Flush()
}
