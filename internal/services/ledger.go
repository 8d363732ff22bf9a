package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"
	"tally/internal/report"
	"tally/internal/storage"
)

// LedgerService orchestrates transactions, categories and budgets on top of
// SQLite, and tells subscribers about every change.
type LedgerService struct {
	storage *storage.SQLiteRepository
	events  ChangePublisher
	now     func() time.Time
}

func NewLedgerService(store *storage.SQLiteRepository, events ChangePublisher) *LedgerService {
	return &LedgerService{
		storage: store,
		events:  events,
		now:     time.Now,
	}
}

func (s *LedgerService) today() core.Date {
	return core.DateOf(s.now().UTC())
}

// notifyBudgetCrossings queues an email for every budget on t's category
// that t's contribution pushed from within its limit to over it. delta is
// the amount this change added to the window.
func (s *LedgerService) notifyBudgetCrossings(ctx context.Context, t core.Transaction, delta int64) {
	if t.Type != core.Expense || t.CategoryID == nil || delta <= 0 {
		return
	}

	budgets, err := s.storage.ListBudgets(ctx, t.OwnerID, t.CategoryID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load budgets for crossing check", "owner_id", t.OwnerID, "error", err)
		return
	}
	if len(budgets) == 0 {
		return
	}

	cat, err := s.storage.GetCategory(ctx, t.OwnerID, *t.CategoryID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load category for crossing check", "category_id", *t.CategoryID, "error", err)
		return
	}

	for _, b := range budgets {
		w, err := core.WindowFor(b.Period)
		if err != nil {
			continue
		}
		start, end := w.Window(t.Date)
		txs, err := s.storage.ListTransactions(ctx, t.OwnerID, storage.TransactionFilter{
			From: start, To: end, Type: core.Expense, CategoryID: t.CategoryID,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load window for crossing check", "budget_id", b.ID, "error", err)
			continue
		}
		st, err := report.BudgetStatus(b, cat.Name, txs, t.Date)
		if err != nil {
			continue
		}
		if st.Spent.Cents <= b.Limit.Cents || st.Spent.Cents-delta > b.Limit.Cents {
			continue
		}
		s.queueBudgetAlert(ctx, st)
	}
}

func (s *LedgerService) queueBudgetAlert(ctx context.Context, st core.BudgetStatus) {
	owner, err := s.storage.GetUser(ctx, st.OwnerID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load budget owner", "owner_id", st.OwnerID, "error", err)
		return
	}
	subject := fmt.Sprintf("Budget exceeded: %s", st.CategoryName)
	body := fmt.Sprintf("Your %s budget for %s is over its limit.\n\nLimit: %s\nSpent: %s (%s to %s)\n",
		st.Period, st.CategoryName, st.Limit, st.Spent, st.WindowStart, st.WindowEnd)
	if _, err := s.storage.EnqueueNotification(ctx, owner.Email, subject, body); err != nil {
		slog.ErrorContext(ctx, "Failed to queue budget alert", "budget_id", st.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Budget alert queued",
		"budget_id", st.ID,
		"owner_id", st.OwnerID,
		"spent_cents", st.Spent.Cents,
		"limit_cents", st.Limit.Cents)
}
