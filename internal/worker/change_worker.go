package worker

import (
	"context"
	"errors"
	"log/slog"

	"tally/internal/core"
)

// ChangeSink reacts to one ledger change.
type ChangeSink interface {
	HandleChange(ctx context.Context, ev core.ChangeEvent) error
}

// ChangeSinkFunc adapts a function to ChangeSink.
type ChangeSinkFunc func(ctx context.Context, ev core.ChangeEvent) error

func (f ChangeSinkFunc) HandleChange(ctx context.Context, ev core.ChangeEvent) error {
	return f(ctx, ev)
}

// ChangeWorker applies change events to every local consumer: report cache
// invalidation and the realtime hub. It runs behind the AMQP consumer, or is
// used directly as the publisher when no broker is configured.
type ChangeWorker struct {
	sinks []ChangeSink
}

func NewChangeWorker(sinks ...ChangeSink) *ChangeWorker {
	return &ChangeWorker{sinks: sinks}
}

// HandleChange delivers ev to every sink and joins their errors.
func (w *ChangeWorker) HandleChange(ctx context.Context, ev core.ChangeEvent) error {
	slog.DebugContext(ctx, "Processing change event",
		"owner_id", ev.OwnerID,
		"entity", ev.Entity,
		"action", ev.Action,
		"id", ev.ID)

	var errs []error
	for _, s := range w.sinks {
		if err := s.HandleChange(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.ErrorContext(ctx, "Change event partially applied", "owner_id", ev.OwnerID, "error", err)
		return err
	}
	return nil
}

// PublishChange implements services.ChangePublisher for broker-less runs.
func (w *ChangeWorker) PublishChange(ctx context.Context, ev core.ChangeEvent) error {
	return w.HandleChange(ctx, ev)
}
