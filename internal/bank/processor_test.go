package bank

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSyncer struct {
	calls  atomic.Int32
	failed int
	err    error
}

func (f *fakeSyncer) SyncAll(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return f.failed, f.err
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	if config.PollInterval != 6*time.Hour {
		t.Errorf("expected PollInterval 6h, got %v", config.PollInterval)
	}

	p := NewSyncProcessor(&fakeSyncer{}, SyncProcessorConfig{})
	if p.config.PollInterval != 6*time.Hour {
		t.Errorf("zero PollInterval should fall back to default, got %v", p.config.PollInterval)
	}
}

func TestSyncProcessor_IsRunning(t *testing.T) {
	processor := NewSyncProcessor(&fakeSyncer{}, DefaultSyncProcessorConfig())
	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	processor := NewSyncProcessor(&fakeSyncer{}, SyncProcessorConfig{PollInterval: time.Hour})
	ctx := context.Background()

	if err := processor.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer processor.Stop(ctx)

	if err := processor.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
}

func TestSyncProcessor_StopWithoutStart(t *testing.T) {
	processor := NewSyncProcessor(&fakeSyncer{}, DefaultSyncProcessorConfig())
	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop without Start should not error: %v", err)
	}
}

func TestSyncProcessor_RunsImmediatelyAndOnTick(t *testing.T) {
	syncer := &fakeSyncer{}
	processor := NewSyncProcessor(syncer, SyncProcessorConfig{PollInterval: 20 * time.Millisecond})
	ctx := context.Background()

	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(90 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
	if got := syncer.calls.Load(); got < 2 {
		t.Errorf("expected at least 2 passes, got %d", got)
	}

	last, err := processor.LastRun()
	if last.IsZero() || err != nil {
		t.Errorf("LastRun() = %v, %v; want a recent successful run", last, err)
	}
}

func TestSyncProcessor_RecordsFailures(t *testing.T) {
	tests := []struct {
		name   string
		syncer *fakeSyncer
	}{
		{name: "list error", syncer: &fakeSyncer{err: errors.New("database is locked")}},
		{name: "item failures", syncer: &fakeSyncer{failed: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := NewSyncProcessor(tt.syncer, DefaultSyncProcessorConfig())
			processor.stopCh = make(chan struct{})
			processor.processBatch(context.Background())
			if _, err := processor.LastRun(); err == nil {
				t.Error("expected LastRun to report the failure")
			}
		})
	}
}
