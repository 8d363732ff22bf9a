package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/storage"
)

const defaultCacheSize = 256

// Service builds reports from storage and caches them per owner, range and
// ledger version. A write from any process moves the version, so a cached
// report is never served after its inputs change.
type Service struct {
	store *storage.SQLiteRepository
	cache cache.Cache[core.Report]
}

func NewService(store *storage.SQLiteRepository, ttl time.Duration) *Service {
	return &Service{
		store: store,
		cache: cache.NewLRUCache[core.Report](defaultCacheSize, ttl),
	}
}

// Cache exposes the report cache so it can be registered for periodic cleanup.
func (s *Service) Cache() cache.Cache[core.Report] {
	return s.cache
}

func cacheKey(ownerID, version int64, from, to core.Date) string {
	return fmt.Sprintf("%sv%d:%s:%s", ownerPrefix(ownerID), version, from, to)
}

func ownerPrefix(ownerID int64) string {
	return fmt.Sprintf("owner:%d:", ownerID)
}

// Generate returns the report for [from, to]. Budgets are evaluated as of to.
func (s *Service) Generate(ctx context.Context, ownerID int64, from, to core.Date) (core.Report, error) {
	if to.Before(from.Time) {
		return core.Report{}, fmt.Errorf("report range ends before it starts")
	}
	version, err := s.store.LedgerVersion(ctx, ownerID)
	if err != nil {
		return core.Report{}, err
	}
	key := cacheKey(ownerID, version, from, to)
	if r, ok := s.cache.Get(key); ok {
		slog.DebugContext(ctx, "Report served from cache", "owner_id", ownerID, "from", from, "to", to, "version", version)
		return r, nil
	}

	fetchFrom, fetchTo := fetchRange(from, to)

	var (
		txs        []core.Transaction
		budgets    []core.Budget
		categories []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, ownerID, storage.TransactionFilter{From: fetchFrom, To: fetchTo})
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = s.store.ListBudgets(gctx, ownerID, nil)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.store.ListCategories(gctx, ownerID, storage.CategoryFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Report{}, fmt.Errorf("load report data: %w", err)
	}

	r := Build(ownerID, from, to, txs, budgets, categories)

	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	for _, b := range budgets {
		st, err := BudgetStatus(b, names[b.CategoryID], txs, to)
		if err != nil {
			return core.Report{}, fmt.Errorf("budget %d status: %w", b.ID, err)
		}
		r.Budgets = append(r.Budgets, st)
	}

	s.cache.Set(key, r)
	slog.InfoContext(ctx, "Report generated",
		"owner_id", ownerID,
		"from", from,
		"to", to,
		"transactions", len(txs),
		"budgets", len(budgets))
	return r, nil
}

// fetchRange widens [from, to] so every budget window containing to is loaded.
func fetchRange(from, to core.Date) (core.Date, core.Date) {
	start, end := from, to
	for _, p := range []core.Period{core.Weekly, core.Monthly, core.Yearly} {
		w, _ := core.WindowFor(p)
		ws, we := w.Window(to)
		if ws.Before(start.Time) {
			start = ws
		}
		if we.After(end.Time) {
			end = we
		}
	}
	return start, end
}

// Invalidate drops every cached report of an owner. Entries of older ledger
// versions are never hit again; this frees them early.
func (s *Service) Invalidate(ownerID int64) {
	s.cache.DeletePrefix(ownerPrefix(ownerID))
}

// HandleChange invalidates on any change to the owner's ledger.
func (s *Service) HandleChange(ctx context.Context, ev core.ChangeEvent) error {
	s.Invalidate(ev.OwnerID)
	slog.DebugContext(ctx, "Report cache invalidated", "owner_id", ev.OwnerID, "entity", ev.Entity)
	return nil
}
