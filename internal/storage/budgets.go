package storage

import (
	"context"
	"fmt"

	"tally/internal/core"
)

const budgetColumns = `id, owner_id, category_id, limit_cents, period, created_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b       core.Budget
		created string
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Limit.Cents, &b.Period, &created); err != nil {
		return core.Budget{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.Budget{}, fmt.Errorf("parse budget created_at: %w", err)
	}
	b.CreatedAt = t
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	created, err := scanBudget(r.db.QueryRowContext(ctx,
		`INSERT INTO budgets (owner_id, category_id, limit_cents, period) VALUES (?, ?, ?, ?) RETURNING `+budgetColumns,
		b.OwnerID, b.CategoryID, b.Limit.Cents, b.Period))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", translate(err))
	}
	return created, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, ownerID, id int64) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", translate(err))
	}
	return b, nil
}

// ListBudgets returns the owner's budgets, optionally for one category.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, ownerID int64, categoryID *int64) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE owner_id = ?`
	args := []any{ownerID}
	if categoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, limit_cents = ?, period = ? WHERE owner_id = ? AND id = ?`,
		b.CategoryID, b.Limit.Cents, b.Period, b.OwnerID, b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", translate(err))
	}
	return affectedOne(res)
}

// DeleteBudget removes only the budget row; transactions are never touched.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return affectedOne(res)
}
