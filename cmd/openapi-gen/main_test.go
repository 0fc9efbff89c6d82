// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpec(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)
	assert.Contains(t, string(spec), "openapi")
	assert.Contains(t, string(spec), "3.1")
	assert.Contains(t, string(spec), "/api/v1/receipts/analyze")
	assert.Contains(t, string(spec), "/api/v1/expenses")
	assert.Contains(t, string(spec), "/api/v1/search")
	assert.Contains(t, string(spec), "/api/v1/config/providers")
	assert.Contains(t, string(spec), "/health")
}

func TestGenerateSpec_ValidJSON(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(spec, &doc))
	assert.Equal(t, "VisualFin API", doc.Info.Title)
	assert.GreaterOrEqual(t, len(doc.Paths), 10)
}
