// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/insights"
	"github.com/visualfin/visualfin/internal/retrieval"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

type resultsResponse struct {
	Results []retrieval.Result `json:"results"`
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find past expenses similar to a description",
		Long:  "Embed free text such as \"coffee\" or \"ride to the airport\" and rank the expense history against it.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	addAddressFlag(cmd)
	cmd.Flags().IntP("top-k", "k", 0, "number of results (0 uses the gateway default)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return vferr.New(vferr.CodeCLIInputInvalid, "search text must not be empty")
	}
	k, _ := cmd.Flags().GetInt("top-k")

	var resp resultsResponse
	body := map[string]any{"query": query}
	if k > 0 {
		body["k"] = k
	}
	if err := clientFor(cmd).postJSON("/api/v1/search", body, &resp); err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), resp.Results)
}

func newSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <expense-id>",
		Short: "Find past expenses similar to a stored one",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimilar,
	}

	addAddressFlag(cmd)
	cmd.Flags().IntP("top-k", "k", 0, "number of results (0 uses the gateway default)")

	return cmd
}

func runSimilar(cmd *cobra.Command, args []string) error {
	k, _ := cmd.Flags().GetInt("top-k")
	path := "/api/v1/expenses/" + url.PathEscape(args[0]) + "/similar"
	if k > 0 {
		path += "?k=" + strconv.Itoa(k)
	}

	var resp resultsResponse
	if err := clientFor(cmd).getJSON(path, &resp); err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), resp.Results)
}

func newExpensesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expenses",
		Short: "List recorded expenses, newest first",
		Args:  cobra.NoArgs,
		RunE:  runExpenses,
	}

	addAddressFlag(cmd)
	cmd.Flags().Int("limit", 20, "maximum number of expenses to show")
	cmd.Flags().Int("offset", 0, "number of expenses to skip")

	return cmd
}

func runExpenses(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	if limit < 0 || offset < 0 {
		return vferr.New(vferr.CodeCLIInputInvalid, "--limit and --offset must not be negative")
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp struct {
		Expenses []*expense.Expense `json:"expenses"`
		Total    int64              `json:"total"`
	}
	if err := clientFor(cmd).getJSON("/api/v1/expenses?"+q.Encode(), &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Expenses) == 0 {
		_, err := fmt.Fprintln(out, "No expenses recorded.")
		return err
	}
	if err := printExpenseTable(out, resp.Expenses); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nShowing %d of %d expenses\n", len(resp.Expenses), resp.Total)
	return err
}

func newInsightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show spending totals and recent expenses",
		Args:  cobra.NoArgs,
		RunE:  runInsights,
	}

	addAddressFlag(cmd)
	cmd.Flags().Int("recent", insights.DefaultRecent, "number of recent expenses to show")

	return cmd
}

func runInsights(cmd *cobra.Command, _ []string) error {
	recent, _ := cmd.Flags().GetInt("recent")

	var s insights.Summary
	if err := clientFor(cmd).getJSON("/api/v1/insights?recent="+strconv.Itoa(recent), &s); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Spending") + "\n")
	fmt.Fprintf(&b, "  Expenses:      %d\n", s.Count)
	fmt.Fprintf(&b, "  Total:         %s\n", s.Total.StringFixed(2))
	for _, cur := range slices.Sorted(maps.Keys(s.TotalsByCurrency)) {
		fmt.Fprintf(&b, "    %s\n", formatMoney(s.TotalsByCurrency[cur], cur))
	}
	fmt.Fprintf(&b, "  Top category:  %s\n", s.TopCategory)
	if len(s.ByCategory) > 0 {
		b.WriteString("\n" + titleStyle.Render("By category") + "\n")
		for _, ct := range s.ByCategory {
			fmt.Fprintf(&b, "  %-20s %10s  %s\n", ct.Category, ct.Total.StringFixed(2),
				dimStyle.Render(fmt.Sprintf("(%d)", ct.Count)))
		}
	}
	b.WriteString("\n" + titleStyle.Render("Recent") + "\n")

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprint(out, boxStyle.Render(strings.TrimRight(b.String(), "\n"))+"\n"); err != nil {
		return err
	}
	if len(s.Recent) == 0 {
		_, err := fmt.Fprintln(out, "No expenses recorded.")
		return err
	}
	return printExpenseTable(out, s.Recent)
}
