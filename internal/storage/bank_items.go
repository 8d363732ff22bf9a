package storage

import (
	"context"
	"fmt"

	"tally/internal/core"
)

const bankItemColumns = `id, owner_id, item_id, access_token, institution_name, cursor, created_at`

func scanBankItem(row interface{ Scan(...any) error }) (core.BankItem, error) {
	var (
		b       core.BankItem
		created string
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &b.ItemID, &b.AccessToken, &b.InstitutionName, &b.Cursor, &created); err != nil {
		return core.BankItem{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.BankItem{}, fmt.Errorf("parse bank item created_at: %w", err)
	}
	b.CreatedAt = t
	return b, nil
}

// SaveBankItem stores a linked item. Relinking the same item replaces its token.
func (r *SQLiteRepository) SaveBankItem(ctx context.Context, b core.BankItem) (core.BankItem, error) {
	saved, err := scanBankItem(r.db.QueryRowContext(ctx,
		`INSERT INTO bank_items (owner_id, item_id, access_token, institution_name) VALUES (?, ?, ?, ?)
		 ON CONFLICT (item_id) DO UPDATE SET
			access_token = excluded.access_token,
			institution_name = excluded.institution_name
		 RETURNING `+bankItemColumns,
		b.OwnerID, b.ItemID, b.AccessToken, b.InstitutionName))
	if err != nil {
		return core.BankItem{}, fmt.Errorf("save bank item: %w", translate(err))
	}
	return saved, nil
}

func (r *SQLiteRepository) GetBankItem(ctx context.Context, ownerID, id int64) (core.BankItem, error) {
	b, err := scanBankItem(r.db.QueryRowContext(ctx,
		`SELECT `+bankItemColumns+` FROM bank_items WHERE owner_id = ? AND id = ?`, ownerID, id))
	if err != nil {
		return core.BankItem{}, fmt.Errorf("get bank item: %w", translate(err))
	}
	return b, nil
}

// ListBankItems returns one owner's items, or every item when ownerID is 0.
func (r *SQLiteRepository) ListBankItems(ctx context.Context, ownerID int64) ([]core.BankItem, error) {
	query := `SELECT ` + bankItemColumns + ` FROM bank_items`
	var args []any
	if ownerID != 0 {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bank items: %w", err)
	}
	defer rows.Close()

	var out []core.BankItem
	for rows.Next() {
		b, err := scanBankItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bank item: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateBankCursor(ctx context.Context, id int64, cursor string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bank_items SET cursor = ? WHERE id = ?`, cursor, id)
	if err != nil {
		return fmt.Errorf("update bank cursor: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) DeleteBankItem(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bank_items WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete bank item: %w", err)
	}
	return affectedOne(res)
}
