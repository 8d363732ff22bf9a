package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/storage"
)

// MaxBatch caps the rows handled by one drain.
const MaxBatch = 10

// DrainResult counts the outcome of one drain.
type DrainResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Drainer sends pending notifications. A failed row keeps its error and is
// never picked up again.
type Drainer struct {
	storage   *storage.SQLiteRepository
	mailer    Mailer
	batchSize int
	now       func() time.Time
}

func NewDrainer(store *storage.SQLiteRepository, mailer Mailer, batchSize int) *Drainer {
	if batchSize <= 0 || batchSize > MaxBatch {
		batchSize = MaxBatch
	}
	return &Drainer{
		storage:   store,
		mailer:    mailer,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// DrainOnce processes up to one batch of pending rows, oldest first.
func (d *Drainer) DrainOnce(ctx context.Context) (DrainResult, error) {
	pending, err := d.storage.PendingNotifications(ctx, d.batchSize)
	if err != nil {
		return DrainResult{}, fmt.Errorf("load pending notifications: %w", err)
	}
	if len(pending) == 0 {
		return DrainResult{}, nil
	}

	var res DrainResult
	for _, n := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		sendErr := d.mailer.Send(ctx, Message{To: n.Recipient, Subject: n.Subject, Body: n.Body})
		if sendErr != nil {
			res.Failed++
			slog.WarnContext(ctx, "Notification failed", "id", n.ID, "error", sendErr)
			if err := d.storage.MarkNotificationFailed(ctx, n.ID, sendErr.Error(), d.now()); err != nil {
				slog.ErrorContext(ctx, "Failed to mark notification failed", "id", n.ID, "error", err)
			}
			continue
		}
		res.Sent++
		if err := d.storage.MarkNotificationSent(ctx, n.ID, d.now()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark notification sent", "id", n.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Notification batch drained", "sent", res.Sent, "failed", res.Failed)
	return res, nil
}
