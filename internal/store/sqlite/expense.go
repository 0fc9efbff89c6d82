// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/visualfin/visualfin/internal/expense"
	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// Compile-time interface check.
var _ store.ExpenseStore = (*ExpenseStore)(nil)

// ExpenseStore implements store.ExpenseStore backed by SQLite. Embeddings
// are stored as sqlite-vec float32 blobs.
type ExpenseStore struct {
	db *sql.DB
}

// NewExpenseStore opens (or creates) a SQLite database at dbPath and
// initialises the expenses table.
func NewExpenseStore(dbPath string) (*ExpenseStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrateExpenses(db); err != nil {
		_ = db.Close()
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "migrating expenses table: %w", err)
	}

	return &ExpenseStore{db: db}, nil
}

func migrateExpenses(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS expenses (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	merchant      TEXT NOT NULL,
	amount        TEXT NOT NULL,
	currency      TEXT NOT NULL,
	date          TEXT NOT NULL,
	category      TEXT NOT NULL,
	tax           TEXT,
	items         TEXT NOT NULL DEFAULT '[]',
	description   TEXT NOT NULL DEFAULT '',
	embedding     BLOB,
	receipt_image TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);

CREATE TRIGGER IF NOT EXISTS expenses_no_update BEFORE UPDATE ON expenses
BEGIN
	SELECT RAISE(ABORT, 'expenses are append-only');
END;

CREATE TRIGGER IF NOT EXISTS expenses_no_delete BEFORE DELETE ON expenses
BEGIN
	SELECT RAISE(ABORT, 'expenses are append-only');
END;
`
	_, err := db.Exec(ddl)
	return err
}

const expenseColumns = `id, merchant, amount, currency, date, category, tax, items, description, embedding, receipt_image, created_at`

// Append inserts a new expense. A duplicate ID returns a conflict error.
func (s *ExpenseStore) Append(ctx context.Context, e *expense.Expense) error {
	if e == nil {
		return vferr.New(vferr.CodeStoreExpenseAppendInvalid, "expense is nil")
	}
	if err := e.Validate(); err != nil {
		return vferr.Wrap(err, vferr.CodeStoreExpenseAppendInvalid, "validating expense", vferr.FieldExpenseID(e.ID))
	}

	items, err := json.Marshal(nonNil(e.Items))
	if err != nil {
		return vferr.Errorf(vferr.CodeStoreExpenseAppendInvalid, "marshalling items: %w", err)
	}

	var embedding []byte
	if e.HasEmbedding() {
		embedding, err = encodeEmbedding(e.Embedding)
		if err != nil {
			return vferr.Errorf(vferr.CodeStoreExpenseAppendInvalid, "serializing embedding: %w", err)
		}
	}

	var tax sql.NullString
	if e.Tax != nil {
		tax = sql.NullString{String: e.Tax.String(), Valid: true}
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `INSERT INTO expenses (` + expenseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		e.ID, e.Merchant, e.Amount.String(), e.Currency, e.Date, e.Category,
		tax, string(items), e.Description, embedding, e.ReceiptImage,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return vferr.Wrap(store.ErrConflict, vferr.CodeStoreExpenseAppendConflict,
				fmt.Sprintf("expense %s already exists", e.ID), vferr.FieldExpenseID(e.ID))
		}
		return vferr.Errorf(vferr.CodeStoreDatabaseFailure, "inserting expense %s: %w", e.ID, err)
	}
	return nil
}

// Get returns the expense with the given ID.
func (s *ExpenseStore) Get(ctx context.Context, id string) (*expense.Expense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vferr.Wrap(store.ErrNotFound, vferr.CodeStoreExpenseGetNotFound,
			fmt.Sprintf("expense %s", id), vferr.FieldExpenseID(id))
	}
	if err != nil {
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "getting expense %s: %w", id, err)
	}
	return e, nil
}

// List returns expenses in insertion order, or newest first.
func (s *ExpenseStore) List(ctx context.Context, opts store.ListOpts) ([]*expense.Expense, error) {
	order := "ASC"
	if opts.NewestFirst {
		order = "DESC"
	}
	limit := -1
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	q := `SELECT ` + expenseColumns + ` FROM expenses ORDER BY seq ` + order + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "listing expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*expense.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "scanning expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "iterating expenses: %w", err)
	}
	return out, nil
}

// Count returns the number of stored expenses.
func (s *ExpenseStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n); err != nil {
		return 0, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "counting expenses: %w", err)
	}
	return n, nil
}

// Stats reports totals and the distinct embedding dimensions, measured with
// sqlite-vec's vec_length().
func (s *ExpenseStore) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	const totals = `SELECT COUNT(*), COUNT(embedding) FROM expenses`
	if err := s.db.QueryRowContext(ctx, totals).Scan(&st.Expenses, &st.WithEmbedding); err != nil {
		return store.Stats{}, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "counting expenses: %w", err)
	}

	const dims = `SELECT DISTINCT vec_length(embedding) AS d FROM expenses
WHERE embedding IS NOT NULL ORDER BY d`
	rows, err := s.db.QueryContext(ctx, dims)
	if err != nil {
		return store.Stats{}, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "measuring embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return store.Stats{}, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "scanning dimension: %w", err)
		}
		st.Dimensions = append(st.Dimensions, d)
	}
	if err := rows.Err(); err != nil {
		return store.Stats{}, vferr.Errorf(vferr.CodeStoreDatabaseFailure, "iterating dimensions: %w", err)
	}
	return st, nil
}

// Close closes the underlying database connection.
func (s *ExpenseStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(r rowScanner) (*expense.Expense, error) {
	var (
		e             expense.Expense
		amount, items string
		createdAt     string
		tax           sql.NullString
		embedding     []byte
	)
	err := r.Scan(&e.ID, &e.Merchant, &amount, &e.Currency, &e.Date, &e.Category,
		&tax, &items, &e.Description, &embedding, &e.ReceiptImage, &createdAt)
	if err != nil {
		return nil, err
	}

	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if tax.Valid {
		t, err := decimal.NewFromString(tax.String)
		if err != nil {
			return nil, fmt.Errorf("parsing tax %q: %w", tax.String, err)
		}
		e.Tax = &t
	}
	if err := json.Unmarshal([]byte(items), &e.Items); err != nil {
		return nil, fmt.Errorf("unmarshalling items: %w", err)
	}
	if len(e.Items) == 0 {
		e.Items = nil
	}
	if e.Embedding, err = decodeEmbedding(embedding); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
