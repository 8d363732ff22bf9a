package bank

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SyncProcessorConfig holds configuration for the periodic bank sync.
type SyncProcessorConfig struct {
	// PollInterval is how often every linked item is synced (default: 6h)
	PollInterval time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 6 * time.Hour,
	}
}

// itemSyncer is the part of Service the processor drives.
type itemSyncer interface {
	SyncAll(ctx context.Context) (int, error)
}

// SyncProcessor syncs every linked bank item on a fixed interval.
type SyncProcessor struct {
	syncer itemSyncer
	config SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	lastRun time.Time
	lastErr error
}

func NewSyncProcessor(syncer itemSyncer, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{
		syncer: syncer,
		config: config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("bank sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Bank sync processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Bank sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Bank sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastRun reports when the last pass finished and how it ended.
func (p *SyncProcessor) LastRun() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun, p.lastErr
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

// processBatch runs one pass over all items. A stop request cancels the pass.
func (p *SyncProcessor) processBatch(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	failed, err := p.syncer.SyncAll(ctx)
	if err != nil {
		p.handleFailure(ctx, err)
		return
	}
	if failed > 0 {
		p.handleFailure(ctx, fmt.Errorf("%d bank items failed to sync", failed))
		return
	}
	p.handleSuccess(ctx, time.Since(start))
}

func (p *SyncProcessor) handleSuccess(ctx context.Context, took time.Duration) {
	p.mu.Lock()
	p.lastRun, p.lastErr = time.Now(), nil
	p.mu.Unlock()
	slog.DebugContext(ctx, "Bank sync pass completed", "duration", took)
}

// handleFailure records the error; the next tick tries again.
func (p *SyncProcessor) handleFailure(ctx context.Context, err error) {
	p.mu.Lock()
	p.lastRun, p.lastErr = time.Now(), err
	p.mu.Unlock()
	slog.WarnContext(ctx, "Bank sync pass failed", "error", err)
}
