package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LedgerVersion returns a counter that grows on every write to the owner's
// transactions, categories or budgets. Triggers maintain it, so writes from
// any process are seen. An untouched ledger is at version 0.
func (r *SQLiteRepository) LedgerVersion(ctx context.Context, ownerID int64) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx,
		`SELECT version FROM ledger_versions WHERE owner_id = ?`, ownerID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ledger version: %w", err)
	}
	return v, nil
}
