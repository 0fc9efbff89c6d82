// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/secrets"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage provider keys stored in the OS keyring",
		Long:  "Set, list and delete provider API keys stored under the visualfin service in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <provider>",
		Short: "Validate and store a provider API key",
		Long: "Read the key from --value or the first line of stdin, check it against the\n" +
			"provider and store it. Reference the printed key_ref from providers.<name>.api_key.",
		Args: cobra.ExactArgs(1),
		RunE: runSecretSet,
	}

	cmd.Flags().String("value", "", "API key (read from stdin when empty)")
	cmd.Flags().Bool("no-validate", false, "store the key without checking it against the provider")

	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		Args:  cobra.NoArgs,
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name, err := provider.ParseProviderName(args[0])
	if err != nil {
		return vferr.Wrapf(err, vferr.CodeCLIInputInvalid, "secret set")
	}

	key, _ := cmd.Flags().GetString("value")
	if key == "" {
		if key, err = readLine(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return vferr.New(vferr.CodeCLIInputInvalid, "API key must not be empty")
	}

	if skip, _ := cmd.Flags().GetBool("no-validate"); !skip {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := provider.ValidateKey(ctx, initHTTPClient, name, key); err != nil {
			return err
		}
	}

	if err := secretStoreFactory().Store(secrets.ServiceName, string(name), key); err != nil {
		return vferr.Errorf(vferr.CodeSecretStoreFailure, "storing %s API key: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored %s API key\nkey_ref: %s\n", name, secrets.ProviderKeyURI(string(name)))
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", vferr.Errorf(vferr.CodeCLIInputInvalid, "reading API key from stdin: %w", err)
	}
	return line, nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.ServiceName)
	if err != nil {
		return vferr.Errorf(vferr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := secretStoreFactory().Delete(secrets.ServiceName, name); err != nil {
		if vferr.HasCode(err, vferr.CodeSecretNotFound) {
			return vferr.Errorf(vferr.CodeSecretNotFound, "secret %q not found", name)
		}
		return vferr.Errorf(vferr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
