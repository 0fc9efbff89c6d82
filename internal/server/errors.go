// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// apiError converts a domain error into a huma status error using the
// error's code. Client errors carry the error text; server and upstream
// failures are logged and answered with a generic message.
func apiError(err error, op string) error {
	status := vferr.HTTPStatus(err)
	if status < http.StatusInternalServerError {
		return huma.NewError(status, err.Error())
	}

	slog.Error("request failed",
		"op", op,
		"status", status,
		"code", vferr.CodeOf(err),
		"error", err,
	)
	if status == http.StatusBadGateway {
		return huma.NewError(status, op+": model provider unavailable")
	}
	return huma.NewError(status, op+" failed")
}

// writeProblem writes an RFC 9457 problem body for responses produced
// outside huma handlers.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(status)
	body := map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write problem response", "status", status, "error", err)
	}
}
