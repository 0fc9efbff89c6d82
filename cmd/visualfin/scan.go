// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/visualfin/visualfin/internal/analysis"
	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/receipt"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Scan a receipt photo",
		Long: "Send a receipt photo to the gateway, show the extracted expense, similar\n" +
			"past expenses and advice. Nothing is stored unless --save is given.",
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}

	addAddressFlag(cmd)
	cmd.Flags().Bool("save", false, "store the scanned expense in the history")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return vferr.Errorf(vferr.CodeCLIInputInvalid, "reading %s: %w", args[0], err)
	}
	// Downscale before upload; the gateway would do it anyway.
	img, err := receipt.Normalize(raw, receipt.DefaultMaxSide)
	if err != nil {
		return vferr.Wrapf(err, vferr.CodeCLIInputInvalid, "%s is not a usable image", args[0])
	}

	gw := clientFor(cmd)
	var a analysis.Analysis
	if err := gw.postJSON("/api/v1/receipts/analyze", map[string]string{"image": img.Base64()}, &a); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printAnalysis(out, &a); err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetBool("save"); !save {
		_, err := fmt.Fprintln(out, dimStyle.Render("Not saved. Re-run with --save to keep it."))
		return err
	}

	var saved expense.Expense
	body := map[string]any{
		"extracted":    a.Extracted,
		"text":         a.Text,
		"receiptImage": img.Base64(),
	}
	if len(a.Embedding) > 0 {
		body["embedding"] = a.Embedding
		body["embeddingModel"] = a.EmbeddingModel
	}
	if err := gw.postJSON("/api/v1/expenses", body, &saved); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, successStyle.Render("Saved expense "+saved.ID))
	return err
}

func printAnalysis(w io.Writer, a *analysis.Analysis) error {
	ex := a.Extracted
	var b strings.Builder

	b.WriteString(titleStyle.Render("Receipt") + "\n")
	fmt.Fprintf(&b, "  Merchant:  %s\n", orDash(ex.Merchant))
	fmt.Fprintf(&b, "  Amount:    %s\n", formatOptionalMoney(ex.Amount, ex.Currency))
	if ex.Tax != nil {
		fmt.Fprintf(&b, "  Tax:       %s\n", formatOptionalMoney(ex.Tax, ex.Currency))
	}
	fmt.Fprintf(&b, "  Date:      %s\n", orDash(ex.Date))
	fmt.Fprintf(&b, "  Category:  %s\n", orDash(ex.Category))
	if len(ex.Items) > 0 {
		fmt.Fprintf(&b, "  Items:     %s\n", strings.Join(ex.Items, ", "))
	}
	if len(a.Embedding) == 0 {
		b.WriteString("  " + warnStyle.Render("No embedding; similarity search was skipped.") + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Similar past expenses") + "\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if err := printResults(w, a.Similar); err != nil {
		return err
	}

	b.Reset()
	b.WriteString("\n" + titleStyle.Render("Advice") + " " +
		sentimentStyle(a.Advice.Sentiment).Render("("+string(a.Advice.Sentiment)+")") + "\n")
	for _, p := range a.Advice.Points {
		b.WriteString("  • " + p + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
