package storage

import (
	"context"
	"database/sql"
	"fmt"

	"tally/internal/core"
)

const userColumns = `id, email, name, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u       core.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created); err != nil {
		return core.User{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	u.CreatedAt = t
	return u, nil
}

// CreateUser inserts a user. A duplicate email yields core.ErrConflict.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, password_hash) VALUES (?, ?, ?) RETURNING `+userColumns,
		core.NormalizeEmail(u.Email), u.Name, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", translate(err))
	}
	return created, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, core.NormalizeEmail(email)))
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", translate(err))
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", translate(err))
	}
	return u, nil
}

// CountUsers is used by health checks and the admin CLI.
func (r *SQLiteRepository) CountUsers(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n.Int64, nil
}
