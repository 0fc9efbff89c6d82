// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// defaultGatewayAddr matches the default networking.listen.
const defaultGatewayAddr = "127.0.0.1:18790"

// defaultHTTPClient is the package-level HTTP client used by gateway commands.
// Scans wait on several model calls, so the timeout is generous.
// Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 2 * time.Minute,
}

// gatewayClient provides HTTP access to a running VisualFin gateway.
type gatewayClient struct {
	baseURL string
	http    *http.Client
}

// newGatewayClient creates a client targeting the given host:port address.
func newGatewayClient(addr string) *gatewayClient {
	return &gatewayClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// addAddressFlag registers the --address flag shared by gateway commands.
func addAddressFlag(cmd *cobra.Command) {
	cmd.Flags().String("address", defaultGatewayAddr, "gateway address (host:port)")
}

func clientFor(cmd *cobra.Command) *gatewayClient {
	addr, _ := cmd.Flags().GetString("address")
	return newGatewayClient(addr)
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *gatewayClient) getJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return vferr.Errorf(vferr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// postJSON sends body as JSON and decodes the JSON response into dest.
func (c *gatewayClient) postJSON(path string, body, dest any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return vferr.Errorf(vferr.CodeCLIInputInvalid, "encoding request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return vferr.Errorf(vferr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

// do sends req and decodes a 2xx JSON body into dest. Connection refused
// maps to CodeCLIGatewayNotRunning; error responses surface their problem
// detail.
func (c *gatewayClient) do(req *http.Request, dest any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return vferr.Errorf(vferr.CodeCLIGatewayNotRunning, "gateway at %s is not running", req.URL.Host)
		}
		return vferr.Errorf(vferr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return vferr.Errorf(vferr.CodeCLIRequestFailure, "gateway returned status %d: %s",
			resp.StatusCode, problemDetail(body))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return vferr.Errorf(vferr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// problemDetail extracts the detail of a problem+json body, falling back
// to the raw text.
func problemDetail(body []byte) string {
	var p struct {
		Detail string `json:"detail"`
		Errors []struct {
			Message  string `json:"message"`
			Location string `json:"location"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &p); err != nil || p.Detail == "" {
		return string(bytes.TrimSpace(body))
	}
	msg := p.Detail
	for _, e := range p.Errors {
		msg += fmt.Sprintf("; %s (%s)", e.Message, e.Location)
	}
	return msg
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
