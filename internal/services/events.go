package services

import (
	"context"
	"log/slog"

	"tally/internal/core"
)

// ChangePublisher delivers change events to ledger subscribers.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev core.ChangeEvent) error
}

// publishChange never fails the caller: the row is already stored and
// subscribers recover on their next refetch.
func publishChange(ctx context.Context, p ChangePublisher, ownerID int64, entity, action string, id int64) {
	if p == nil {
		slog.DebugContext(ctx, "No change publisher configured, skipping change event",
			"owner_id", ownerID, "entity", entity, "action", action)
		return
	}
	ev := core.NewChangeEvent(ownerID, entity, action, id)
	if err := p.PublishChange(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"owner_id", ownerID,
			"entity", entity,
			"action", action,
			"id", id,
			"error", err)
	}
}
