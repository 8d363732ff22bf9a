package storage

import (
	"context"
	"database/sql"
	"fmt"

	"tally/internal/core"
)

const transactionColumns = `id, owner_id, created_by, type, amount_cents, category_id, description,
	date, expense_type, source, external_id, created_at, updated_at`

// TransactionFilter narrows ListTransactions. Zero values are ignored.
type TransactionFilter struct {
	From       core.Date
	To         core.Date
	Type       core.TransactionType
	CategoryID *int64
	Limit      int
	Offset     int
}

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                core.Transaction
		categoryID       sql.NullInt64
		externalID       sql.NullString
		date             string
		created, updated string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.CreatedBy, &t.Type, &t.Amount.Cents, &categoryID,
		&t.Description, &date, &t.ExpenseType, &t.Source, &externalID, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date: %w", err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction updated_at: %w", err)
	}
	t.CategoryID = int64Ptr(categoryID)
	t.ExternalID = externalID.String
	return t, nil
}

func insertTransaction(ctx context.Context, q querier, t core.Transaction) (core.Transaction, error) {
	source := t.Source
	if source == "" {
		source = core.SourceManual
	}
	created, err := scanTransaction(q.QueryRowContext(ctx,
		`INSERT INTO transactions
			(owner_id, created_by, type, amount_cents, category_id, description, date, expense_type, source, external_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+transactionColumns,
		t.OwnerID, t.CreatedBy, t.Type, t.Amount.Cents, nullInt64(t.CategoryID), t.Description,
		t.Date.String(), t.ExpenseType, source, nullString(t.ExternalID)))
	if err != nil {
		return core.Transaction{}, translate(err)
	}
	return created, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	created, err := insertTransaction(ctx, r.db, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return created, nil
}

// InsertTransactions writes every row in one SQL transaction. Either all rows
// are stored or none are.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.withTx(ctx, func(q querier) error {
		for i, t := range txs {
			if _, err := insertTransaction(ctx, q, t); err != nil {
				return fmt.Errorf("insert row %d of batch: %w", i+1, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", translate(err))
	}
	return t, nil
}

// ListTransactions returns matching rows ordered by date, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID int64, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE owner_id = ?`
	args := []any{ownerID}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, f.To.String())
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.CategoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *f.CategoryID)
	}
	query += ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET type = ?, amount_cents = ?, category_id = ?, description = ?, date = ?, expense_type = ?,
		     updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE owner_id = ? AND id = ?`,
		t.Type, t.Amount.Cents, nullInt64(t.CategoryID), t.Description, t.Date.String(), t.ExpenseType,
		t.OwnerID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", translate(err))
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affectedOne(res)
}

// UpsertExternalTransaction inserts a bank transaction or refreshes the row
// already stored under the same external id.
func (r *SQLiteRepository) UpsertExternalTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ExternalID == "" {
		return core.Transaction{}, fmt.Errorf("upsert external transaction: missing external id")
	}
	out, err := scanTransaction(r.db.QueryRowContext(ctx,
		`INSERT INTO transactions
			(owner_id, created_by, type, amount_cents, category_id, description, date, expense_type, source, external_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, external_id) WHERE external_id IS NOT NULL DO UPDATE SET
			category_id = CASE WHEN transactions.type = excluded.type
				THEN COALESCE(transactions.category_id, excluded.category_id)
				ELSE excluded.category_id END,
			type = excluded.type,
			amount_cents = excluded.amount_cents,
			description = excluded.description,
			date = excluded.date,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 RETURNING `+transactionColumns,
		t.OwnerID, t.CreatedBy, t.Type, t.Amount.Cents, nullInt64(t.CategoryID), t.Description,
		t.Date.String(), t.ExpenseType, core.SourceBank, t.ExternalID))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("upsert external transaction: %w", translate(err))
	}
	return out, nil
}

// DeleteExternalTransaction removes a bank transaction. A missing row is not an error.
func (r *SQLiteRepository) DeleteExternalTransaction(ctx context.Context, ownerID int64, externalID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE owner_id = ? AND external_id = ?`, ownerID, externalID); err != nil {
		return fmt.Errorf("delete external transaction: %w", err)
	}
	return nil
}
