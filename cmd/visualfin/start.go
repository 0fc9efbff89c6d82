// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// timeNow is replaced in tests.
var timeNow = time.Now

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the VisualFin gateway",
		Long:  "Load configuration, open the expense store, connect model providers and serve the HTTP API.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().Bool("ephemeral", false, "keep expenses in memory only")
	cmd.Flags().Bool("seed", false, "add the demo expenses when the store is empty")

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		viper.Set("networking.listen", listen)
	}
	if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
		viper.Set("storage.backend", "memory")
	}

	cfg, err := loadConfig()
	if err != nil {
		return vferr.Wrapf(err, vferr.CodeCLISetupFailure, "loading config")
	}
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return vferr.Wrapf(err, vferr.CodeCLISetupFailure, "resolving data directory")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := WireGateway(ctx, cfg, dataDir)
	if err != nil {
		return vferr.Wrapf(err, vferr.CodeCLISetupFailure, "wiring gateway")
	}
	defer func() { _ = gw.Close() }()

	if seed, _ := cmd.Flags().GetBool("seed"); seed {
		if err := seedIfEmpty(ctx, gw.Expenses); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Starting visualfin on %s (storage=%s, providers=%v)\n",
		cfg.Networking.Listen, cfg.Storage.Backend, gw.ProviderRegistry.Names())
	if err != nil {
		return err
	}

	return gw.Start(ctx)
}

func seedIfEmpty(ctx context.Context, s store.ExpenseStore) error {
	if _, err := store.Seed(ctx, s, timeNow()); err != nil {
		return vferr.Wrapf(err, vferr.CodeCLISetupFailure, "seeding demo expenses")
	}
	return nil
}
