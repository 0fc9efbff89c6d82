// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/visualfin/visualfin/internal/secrets"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, the gateway, configured providers, the data directory and disk space.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}

	addAddressFlag(cmd)

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	dataDir := resolveDataDir()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Gateway", func() string { return checkGateway(addr) }},
		{"Config", checkConfig},
		{"Providers", checkProviders},
		{"Data Dir", func() string { return checkDataDir(dataDir) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// resolveDataDir returns the data directory from viper or the default.
func resolveDataDir() string {
	dataDir := viper.GetString("storage.data_dir")
	home, _ := os.UserHomeDir()
	switch {
	case dataDir == "" || dataDir == "~":
		return filepath.Join(home, ".visualfin")
	case strings.HasPrefix(dataDir, "~/"):
		return filepath.Join(home, dataDir[2:])
	default:
		return dataDir
	}
}

func checkBinary() string {
	return fmt.Sprintf("visualfin %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkGateway(addr string) string {
	var body statusResponse
	if err := newGatewayClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if vferr.HasCode(err, vferr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'visualfin start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s (%d expenses, %d/%d providers healthy)",
		body.Status, addr, body.Store.Expenses, body.Healthy, body.Providers)
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

// checkProviders lists providers with a key, marking keyring references
// that do not resolve.
func checkProviders() string {
	providers := viper.GetStringMap("providers")
	if len(providers) == 0 {
		return "none configured (run 'visualfin init')"
	}

	var store secrets.Store
	parts := make([]string, 0, len(providers))
	for _, name := range slices.Sorted(maps.Keys(providers)) {
		key := viper.GetString("providers." + name + ".api_key")
		switch {
		case key == "":
			parts = append(parts, name+" (no key)")
		case secrets.IsKeyringURI(key):
			if store == nil {
				store = secretStoreFactory()
			}
			if _, err := secrets.ResolveKeyringURI(store, key); err != nil {
				parts = append(parts, name+" (keyring entry missing)")
				continue
			}
			parts = append(parts, name+" (keyring)")
		default:
			parts = append(parts, name+" (plain-text key)")
		}
	}
	return strings.Join(parts, ", ")
}

func checkDataDir(dataDir string) string {
	fi, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("%s does not exist yet (created on 'visualfin start')", dataDir)
		}
		return fmt.Sprintf("error: %s", err)
	}
	if !fi.IsDir() {
		return fmt.Sprintf("%s is not a directory", dataDir)
	}
	if fi.Mode().Perm()&0o077 != 0 {
		return fmt.Sprintf("%s (mode %04o, readable by others)", dataDir, fi.Mode().Perm())
	}
	return dataDir
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to home directory if data dir doesn't exist yet.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
