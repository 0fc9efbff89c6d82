// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/visualfin/visualfin/internal/analysis"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/server"
	"github.com/visualfin/visualfin/internal/store/memory"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	// An in-memory store and an empty registry are enough to register every
	// route. Handlers are never invoked during spec generation.
	expenses := memory.NewExpenseStore()
	reg := provider.NewRegistry()

	svc, err := analysis.NewService(analysis.ServiceConfig{Models: reg, Store: expenses})
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeCLISetupFailure, "creating analysis service")
	}
	services, err := server.NewServices(svc, expenses, reg)
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   services,
	})
	if err != nil {
		return nil, vferr.Wrapf(err, vferr.CodeCLISetupFailure, "creating server")
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
