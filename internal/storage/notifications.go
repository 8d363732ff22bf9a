package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tally/internal/core"
)

const notificationColumns = `id, recipient, subject, body, status, error, created_at, processed_at`

func scanNotification(row interface{ Scan(...any) error }) (core.Notification, error) {
	var (
		n         core.Notification
		created   string
		processed sql.NullString
	)
	err := row.Scan(&n.ID, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.Error, &created, &processed)
	if err != nil {
		return core.Notification{}, err
	}
	if n.CreatedAt, err = parseTime(created); err != nil {
		return core.Notification{}, fmt.Errorf("parse notification created_at: %w", err)
	}
	if n.ProcessedAt, err = parseNullTime(processed); err != nil {
		return core.Notification{}, fmt.Errorf("parse notification processed_at: %w", err)
	}
	return n, nil
}

// EnqueueNotification appends a pending email to the queue.
func (r *SQLiteRepository) EnqueueNotification(ctx context.Context, recipient, subject, body string) (core.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`INSERT INTO notifications (recipient, subject, body) VALUES (?, ?, ?) RETURNING `+notificationColumns,
		recipient, subject, body))
	if err != nil {
		return core.Notification{}, fmt.Errorf("enqueue notification: %w", translate(err))
	}
	return n, nil
}

// PendingNotifications returns up to limit pending rows, oldest first.
func (r *SQLiteRepository) PendingNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkNotificationSent(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'sent', error = '', processed_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return affectedOne(res)
}

// MarkNotificationFailed records the error string on the row. Failed rows are
// not picked up again.
func (r *SQLiteRepository) MarkNotificationFailed(ctx context.Context, id int64, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'failed', error = ?, processed_at = ? WHERE id = ?`,
		reason, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) GetNotification(ctx context.Context, id int64) (core.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if err != nil {
		return core.Notification{}, fmt.Errorf("get notification: %w", translate(err))
	}
	return n, nil
}

// NotificationStats counts rows per status.
func (r *SQLiteRepository) NotificationStats(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]int64{
		core.NotificationPending: 0,
		core.NotificationSent:    0,
		core.NotificationFailed:  0,
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan notification stats: %w", err)
		}
		stats[status] = n
	}
	return stats, rows.Err()
}
