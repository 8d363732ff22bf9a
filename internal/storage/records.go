package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tally/internal/core"
)

// Consent, feedback and analytics rows are insert-only.

func (r *SQLiteRepository) InsertConsent(ctx context.Context, c core.ConsentRecord) (core.ConsentRecord, error) {
	var created string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO consents (user_id, consent_type, granted, policy_version) VALUES (?, ?, ?, ?)
		 RETURNING id, created_at`,
		c.UserID, c.ConsentType, boolInt(c.Granted), c.PolicyVersion).Scan(&c.ID, &created)
	if err != nil {
		return core.ConsentRecord{}, fmt.Errorf("insert consent: %w", translate(err))
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return core.ConsentRecord{}, fmt.Errorf("parse consent created_at: %w", err)
	}
	return c, nil
}

// ListConsents returns a user's consent history, newest first.
func (r *SQLiteRepository) ListConsents(ctx context.Context, userID int64) ([]core.ConsentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, consent_type, granted, policy_version, created_at
		 FROM consents WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var out []core.ConsentRecord
	for rows.Next() {
		var (
			c       core.ConsentRecord
			granted int
			created string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.ConsentType, &granted, &c.PolicyVersion, &created); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse consent created_at: %w", err)
		}
		c.Granted = granted != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertFeedback(ctx context.Context, f core.FeedbackRecord) (core.FeedbackRecord, error) {
	var (
		rating  sql.NullInt64
		created string
	)
	if f.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*f.Rating), Valid: true}
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO feedback (user_id, rating, message, page) VALUES (?, ?, ?, ?) RETURNING id, created_at`,
		f.UserID, rating, f.Message, f.Page).Scan(&f.ID, &created)
	if err != nil {
		return core.FeedbackRecord{}, fmt.Errorf("insert feedback: %w", translate(err))
	}
	if f.CreatedAt, err = parseTime(created); err != nil {
		return core.FeedbackRecord{}, fmt.Errorf("parse feedback created_at: %w", err)
	}
	return f, nil
}

func (r *SQLiteRepository) InsertAnalyticsEvent(ctx context.Context, e core.AnalyticsEvent) (core.AnalyticsEvent, error) {
	props := e.Properties
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return core.AnalyticsEvent{}, fmt.Errorf("marshal event properties: %w", err)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO analytics_events (user_id, name, properties, occurred_at) VALUES (?, ?, ?, ?) RETURNING id`,
		nullInt64(e.UserID), e.Name, string(raw), formatTime(e.OccurredAt)).Scan(&e.ID)
	if err != nil {
		return core.AnalyticsEvent{}, fmt.Errorf("insert analytics event: %w", translate(err))
	}
	e.OccurredAt = e.OccurredAt.UTC().Truncate(time.Second)
	return e, nil
}

// CountAnalyticsEvents counts events with the given name.
func (r *SQLiteRepository) CountAnalyticsEvents(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analytics_events WHERE name = ?`, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count analytics events: %w", err)
	}
	return n, nil
}
