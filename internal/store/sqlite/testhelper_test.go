// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/visualfin/visualfin/internal/expense"
)

// testDir creates a temp directory for a test and returns cleanup func.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "visualfin-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

func newExpense(id, merchant string, embedding ...float32) *expense.Expense {
	return &expense.Expense{
		ID:        id,
		Merchant:  merchant,
		Amount:    decimal.RequireFromString("12.34"),
		Currency:  "USD",
		Date:      "2024-01-15",
		Category:  "Food & Dining",
		Embedding: embedding,
		CreatedAt: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}
