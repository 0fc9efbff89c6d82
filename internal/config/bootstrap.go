// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

//go:embed visualfin.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/visualfin/visualfin.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", vferr.Errorf(vferr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "visualfin", "visualfin.yaml"), nil
}

// BootstrapConfig writes the default commented config to the default path
// if nothing is there yet. Returns the path written, or "" when the file
// already existed or could not be written; failures are logged at debug.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return bootstrapAt(cfgPath)
}

func bootstrapAt(cfgPath string) string {
	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
