package services

import (
	"context"
	"fmt"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

// RecordService appends consent, feedback and analytics rows. Nothing reads
// them back except the consent history.
type RecordService struct {
	storage *storage.SQLiteRepository
}

func NewRecordService(store *storage.SQLiteRepository) *RecordService {
	return &RecordService{storage: store}
}

func (s *RecordService) RecordConsent(ctx context.Context, c core.ConsentRecord) (core.ConsentRecord, error) {
	if err := c.Validate(); err != nil {
		return core.ConsentRecord{}, err
	}
	saved, err := s.storage.InsertConsent(ctx, c)
	if err != nil {
		return core.ConsentRecord{}, fmt.Errorf("record consent: %w", err)
	}
	return saved, nil
}

func (s *RecordService) ListConsents(ctx context.Context, userID int64) ([]core.ConsentRecord, error) {
	return s.storage.ListConsents(ctx, userID)
}

func (s *RecordService) RecordFeedback(ctx context.Context, f core.FeedbackRecord) (core.FeedbackRecord, error) {
	if err := f.Validate(); err != nil {
		return core.FeedbackRecord{}, err
	}
	saved, err := s.storage.InsertFeedback(ctx, f)
	if err != nil {
		return core.FeedbackRecord{}, fmt.Errorf("record feedback: %w", err)
	}
	return saved, nil
}

func (s *RecordService) TrackEvent(ctx context.Context, e core.AnalyticsEvent) (core.AnalyticsEvent, error) {
	if err := e.Validate(); err != nil {
		return core.AnalyticsEvent{}, err
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	saved, err := s.storage.InsertAnalyticsEvent(ctx, e)
	if err != nil {
		return core.AnalyticsEvent{}, fmt.Errorf("track event: %w", err)
	}
	return saved, nil
}
