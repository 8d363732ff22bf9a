package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tally/internal/core"
)

const inviteColumns = `id, owner_id, email, permission, token, state, expires_at, accepted_by, accepted_at, created_at`

func scanInvite(row interface{ Scan(...any) error }) (core.Invite, error) {
	var (
		inv              core.Invite
		expires, created string
		acceptedBy       sql.NullInt64
		acceptedAt       sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.OwnerID, &inv.Email, &inv.Permission, &inv.Token, &inv.State,
		&expires, &acceptedBy, &acceptedAt, &created)
	if err != nil {
		return core.Invite{}, err
	}
	if inv.ExpiresAt, err = parseTime(expires); err != nil {
		return core.Invite{}, fmt.Errorf("parse invite expires_at: %w", err)
	}
	if inv.CreatedAt, err = parseTime(created); err != nil {
		return core.Invite{}, fmt.Errorf("parse invite created_at: %w", err)
	}
	if inv.AcceptedAt, err = parseNullTime(acceptedAt); err != nil {
		return core.Invite{}, fmt.Errorf("parse invite accepted_at: %w", err)
	}
	inv.AcceptedBy = int64Ptr(acceptedBy)
	return inv, nil
}

func (r *SQLiteRepository) CreateInvite(ctx context.Context, inv core.Invite) (core.Invite, error) {
	created, err := scanInvite(r.db.QueryRowContext(ctx,
		`INSERT INTO invites (owner_id, email, permission, token, expires_at) VALUES (?, ?, ?, ?, ?)
		 RETURNING `+inviteColumns,
		inv.OwnerID, core.NormalizeEmail(inv.Email), inv.Permission, inv.Token, formatTime(inv.ExpiresAt)))
	if err != nil {
		return core.Invite{}, fmt.Errorf("create invite: %w", translate(err))
	}
	return created, nil
}

func (r *SQLiteRepository) GetInviteByToken(ctx context.Context, token string) (core.Invite, error) {
	inv, err := scanInvite(r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE token = ?`, token))
	if err != nil {
		return core.Invite{}, fmt.Errorf("get invite by token: %w", translate(err))
	}
	return inv, nil
}

// ListInvites returns the owner's invites, optionally in one state, newest first.
func (r *SQLiteRepository) ListInvites(ctx context.Context, ownerID int64, state core.InviteState) ([]core.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE owner_id = ?`
	args := []any{ownerID}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var out []core.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// AcceptInvite moves a pending invite to accepted. It fails with
// core.ErrInviteNotPending when the invite changed state in the meantime.
func (r *SQLiteRepository) AcceptInvite(ctx context.Context, id, userID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invites SET state = 'accepted', accepted_by = ?, accepted_at = ? WHERE id = ? AND state = 'pending'`,
		userID, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("accept invite: %w", translate(err))
	}
	if err := affectedOne(res); err != nil {
		return core.ErrInviteNotPending
	}
	return nil
}

// RevokeInvite marks an invite revoked. Transactions keep their created_by.
func (r *SQLiteRepository) RevokeInvite(ctx context.Context, ownerID, id int64) (core.Invite, error) {
	inv, err := scanInvite(r.db.QueryRowContext(ctx,
		`UPDATE invites SET state = 'revoked' WHERE owner_id = ? AND id = ? AND state != 'revoked'
		 RETURNING `+inviteColumns, ownerID, id))
	if err != nil {
		return core.Invite{}, fmt.Errorf("revoke invite: %w", translate(err))
	}
	return inv, nil
}

// FindPermission returns the permission an accepted invite grants userID on
// ownerID's ledger, or core.ErrNotFound.
func (r *SQLiteRepository) FindPermission(ctx context.Context, ownerID, userID int64) (core.Permission, error) {
	var p core.Permission
	err := r.db.QueryRowContext(ctx,
		`SELECT permission FROM invites
		 WHERE owner_id = ? AND accepted_by = ? AND state = 'accepted'
		 ORDER BY CASE permission WHEN 'full_access' THEN 0 ELSE 1 END
		 LIMIT 1`, ownerID, userID).Scan(&p)
	if err != nil {
		return "", fmt.Errorf("find permission: %w", translate(err))
	}
	return p, nil
}

// ListSharedLedgers returns the ledgers other users opened to userID.
func (r *SQLiteRepository) ListSharedLedgers(ctx context.Context, userID int64) ([]core.SharedLedger, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.owner_id, u.email, u.name, i.permission, i.id
		 FROM invites i JOIN users u ON u.id = i.owner_id
		 WHERE i.accepted_by = ? AND i.state = 'accepted'
		 ORDER BY u.email`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shared ledgers: %w", err)
	}
	defer rows.Close()

	var out []core.SharedLedger
	for rows.Next() {
		var s core.SharedLedger
		if err := rows.Scan(&s.OwnerID, &s.OwnerEmail, &s.OwnerName, &s.Permission, &s.InviteID); err != nil {
			return nil, fmt.Errorf("scan shared ledger: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
