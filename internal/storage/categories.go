package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tally/internal/core"
)

const categoryColumns = `id, owner_id, name, expense_type, is_income, created_at`

// CategoryFilter narrows ListCategories. A nil IsIncome returns both kinds.
type CategoryFilter struct {
	IsIncome *bool
}

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c        core.Category
		isIncome int
		created  string
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.ExpenseType, &isIncome, &created); err != nil {
		return core.Category{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.Category{}, fmt.Errorf("parse category created_at: %w", err)
	}
	c.IsIncome = isIncome != 0
	c.CreatedAt = t
	return c, nil
}

func createCategory(ctx context.Context, q querier, c core.Category) (core.Category, error) {
	created, err := scanCategory(q.QueryRowContext(ctx,
		`INSERT INTO categories (owner_id, name, expense_type, is_income)
		 VALUES (?, ?, ?, ?) RETURNING `+categoryColumns,
		c.OwnerID, strings.TrimSpace(c.Name), c.ExpenseType, boolInt(c.IsIncome)))
	if err != nil {
		return core.Category{}, translate(err)
	}
	return created, nil
}

// CreateCategory inserts a category. Names are unique per owner ignoring case.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	created, err := createCategory(ctx, r.db, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, ownerID, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", translate(err))
	}
	return c, nil
}

func findCategoryByName(ctx context.Context, q querier, ownerID int64, name string) (core.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_id = ? AND name = ? COLLATE NOCASE`,
		ownerID, strings.TrimSpace(name)))
	if err != nil {
		return core.Category{}, translate(err)
	}
	return c, nil
}

// FindCategoryByName matches case-insensitively.
func (r *SQLiteRepository) FindCategoryByName(ctx context.Context, ownerID int64, name string) (core.Category, error) {
	c, err := findCategoryByName(ctx, r.db, ownerID, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category %q: %w", name, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID int64, f CategoryFilter) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE owner_id = ?`
	args := []any{ownerID}
	if f.IsIncome != nil {
		query += ` AND is_income = ?`
		args = append(args, boolInt(*f.IsIncome))
	}
	query += ` ORDER BY name COLLATE NOCASE`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, expense_type = ?, is_income = ? WHERE owner_id = ? AND id = ?`,
		strings.TrimSpace(c.Name), c.ExpenseType, boolInt(c.IsIncome), c.OwnerID, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", translate(err))
	}
	return affectedOne(res)
}

// DeleteCategory removes a category. Its transactions keep their history with a
// NULL category and its budgets are removed, both through the schema's foreign keys.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affectedOne(res)
}

// ResolveCategory returns the category with the given name, creating a
// variable category of the given kind when none exists.
func (r *SQLiteRepository) ResolveCategory(ctx context.Context, ownerID int64, name string, isIncome bool) (core.Category, bool, error) {
	var (
		out     core.Category
		created bool
	)
	err := r.withTx(ctx, func(q querier) error {
		c, err := findCategoryByName(ctx, q, ownerID, name)
		if err == nil {
			out = c
			return nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		c, err = createCategory(ctx, q, core.Category{
			OwnerID:     ownerID,
			Name:        name,
			ExpenseType: core.Variable,
			IsIncome:    isIncome,
		})
		if err != nil {
			return err
		}
		out, created = c, true
		return nil
	})
	if err != nil {
		return core.Category{}, false, fmt.Errorf("resolve category %q: %w", name, err)
	}
	return out, created, nil
}
