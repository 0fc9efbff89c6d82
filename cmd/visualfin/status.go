// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

type statusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   struct {
		Expenses      int64 `json:"expenses"`
		WithEmbedding int64 `json:"with_embedding"`
		Dimensions    []int `json:"dimensions"`
	} `json:"store"`
	Providers int `json:"providers"`
	Healthy   int `json:"healthy"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway status",
		Long:  "Check the running gateway's status endpoint and display status information.",
		RunE:  runStatus,
	}

	addAddressFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body statusResponse
	if err := newGatewayClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if vferr.HasCode(err, vferr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Gateway at %s: %s (version %s)\n", addr, body.Status, body.Version)
	_, _ = fmt.Fprintf(out, "Expenses:  %d (%d with embeddings)\n", body.Store.Expenses, body.Store.WithEmbedding)
	if len(body.Store.Dimensions) > 1 {
		_, _ = fmt.Fprintf(out, "Warning:   mixed embedding sizes %v; re-scan or switch back the embedding model\n",
			body.Store.Dimensions)
	}
	_, _ = fmt.Fprintf(out, "Providers: %d registered, %d healthy\n", body.Providers, body.Healthy)
	return nil
}
