package services

import (
	"context"
	"errors"
	"fmt"

	"tally/internal/core"
	"tally/internal/report"
	"tally/internal/storage"
)

// BudgetInput is the editable part of a budget.
type BudgetInput struct {
	CategoryID int64
	Limit      core.Money
	Period     core.Period
}

func (s *LedgerService) checkBudgetCategory(ctx context.Context, ownerID, categoryID int64) (core.Category, error) {
	cat, err := s.storage.GetCategory(ctx, ownerID, categoryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Category{}, core.ErrUnknownCategory
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("load category: %w", err)
	}
	if cat.IsIncome {
		return core.Category{}, fmt.Errorf("%w: budgets track expense categories", core.ErrCategoryMismatch)
	}
	return cat, nil
}

func (s *LedgerService) CreateBudget(ctx context.Context, ownerID int64, in BudgetInput) (core.Budget, error) {
	b := core.Budget{OwnerID: ownerID, CategoryID: in.CategoryID, Limit: in.Limit, Period: in.Period}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if _, err := s.checkBudgetCategory(ctx, ownerID, b.CategoryID); err != nil {
		return core.Budget{}, err
	}
	created, err := s.storage.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	publishChange(ctx, s.events, ownerID, core.EntityBudget, core.ActionCreated, created.ID)
	return created, nil
}

func (s *LedgerService) UpdateBudget(ctx context.Context, ownerID, id int64, in BudgetInput) (core.Budget, error) {
	b, err := s.storage.GetBudget(ctx, ownerID, id)
	if err != nil {
		return core.Budget{}, err
	}
	b.CategoryID, b.Limit, b.Period = in.CategoryID, in.Limit, in.Period
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if _, err := s.checkBudgetCategory(ctx, ownerID, b.CategoryID); err != nil {
		return core.Budget{}, err
	}
	if err := s.storage.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	publishChange(ctx, s.events, ownerID, core.EntityBudget, core.ActionUpdated, id)
	return b, nil
}

// DeleteBudget removes a budget; transactions are untouched.
func (s *LedgerService) DeleteBudget(ctx context.Context, ownerID, id int64) error {
	if err := s.storage.DeleteBudget(ctx, ownerID, id); err != nil {
		return err
	}
	publishChange(ctx, s.events, ownerID, core.EntityBudget, core.ActionDeleted, id)
	return nil
}

// GetBudget returns one budget with its spending as of asOf (today when zero).
func (s *LedgerService) GetBudget(ctx context.Context, ownerID, id int64, asOf core.Date) (core.BudgetStatus, error) {
	b, err := s.storage.GetBudget(ctx, ownerID, id)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	statuses, err := s.budgetStatuses(ctx, ownerID, []core.Budget{b}, asOf)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return statuses[0], nil
}

// ListBudgets returns every budget with spending computed at read time for
// the period window containing asOf (today when zero).
func (s *LedgerService) ListBudgets(ctx context.Context, ownerID int64, asOf core.Date) ([]core.BudgetStatus, error) {
	budgets, err := s.storage.ListBudgets(ctx, ownerID, nil)
	if err != nil {
		return nil, err
	}
	return s.budgetStatuses(ctx, ownerID, budgets, asOf)
}

func (s *LedgerService) budgetStatuses(ctx context.Context, ownerID int64, budgets []core.Budget, asOf core.Date) ([]core.BudgetStatus, error) {
	if len(budgets) == 0 {
		return []core.BudgetStatus{}, nil
	}
	if asOf.IsZero() {
		asOf = s.today()
	}

	var from, to core.Date
	for _, b := range budgets {
		w, err := core.WindowFor(b.Period)
		if err != nil {
			return nil, err
		}
		start, end := w.Window(asOf)
		if from.IsZero() || start.Before(from.Time) {
			from = start
		}
		if to.IsZero() || end.After(to.Time) {
			to = end
		}
	}

	txs, err := s.storage.ListTransactions(ctx, ownerID, storage.TransactionFilter{From: from, To: to, Type: core.Expense})
	if err != nil {
		return nil, fmt.Errorf("load budget transactions: %w", err)
	}
	categories, err := s.storage.ListCategories(ctx, ownerID, storage.CategoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st, err := report.BudgetStatus(b, names[b.CategoryID], txs, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
