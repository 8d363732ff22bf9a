package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/storage"
)

// CategoryInput is the editable part of a category.
type CategoryInput struct {
	Name        string
	ExpenseType core.ExpenseType
	IsIncome    bool
}

func (s *LedgerService) CreateCategory(ctx context.Context, ownerID int64, in CategoryInput) (core.Category, error) {
	c := core.Category{OwnerID: ownerID, Name: in.Name, ExpenseType: in.ExpenseType, IsIncome: in.IsIncome}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.storage.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	publishChange(ctx, s.events, ownerID, core.EntityCategory, core.ActionCreated, created.ID)
	return created, nil
}

func (s *LedgerService) GetCategory(ctx context.Context, ownerID, id int64) (core.Category, error) {
	return s.storage.GetCategory(ctx, ownerID, id)
}

// ListCategories returns every category, or only the kind matching a
// transaction type when one is given.
func (s *LedgerService) ListCategories(ctx context.Context, ownerID int64, kind core.TransactionType) ([]core.Category, error) {
	var f storage.CategoryFilter
	switch kind {
	case "":
	case core.Income, core.Expense:
		isIncome := kind == core.Income
		f.IsIncome = &isIncome
	default:
		return nil, core.ErrInvalidType
	}
	return s.storage.ListCategories(ctx, ownerID, f)
}

// UpdateCategory edits a category. Flipping the income flag is refused while
// transactions of the old kind still reference it.
func (s *LedgerService) UpdateCategory(ctx context.Context, ownerID, id int64, in CategoryInput) (core.Category, error) {
	existing, err := s.storage.GetCategory(ctx, ownerID, id)
	if err != nil {
		return core.Category{}, err
	}
	updated := existing
	updated.Name, updated.ExpenseType, updated.IsIncome = in.Name, in.ExpenseType, in.IsIncome
	if err := updated.Validate(); err != nil {
		return core.Category{}, err
	}

	if existing.IsIncome != updated.IsIncome {
		oldKind := core.Expense
		if existing.IsIncome {
			oldKind = core.Income
		}
		used, err := s.storage.ListTransactions(ctx, ownerID, storage.TransactionFilter{
			CategoryID: &id, Type: oldKind, Limit: 1,
		})
		if err != nil {
			return core.Category{}, fmt.Errorf("check category usage: %w", err)
		}
		if len(used) > 0 {
			return core.Category{}, core.ErrCategoryInUse
		}
	}

	if err := s.storage.UpdateCategory(ctx, updated); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	publishChange(ctx, s.events, ownerID, core.EntityCategory, core.ActionUpdated, id)
	return updated, nil
}

// DeleteCategory keeps the category's transactions with no category and
// removes its budgets.
func (s *LedgerService) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	if err := s.storage.DeleteCategory(ctx, ownerID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "owner_id", ownerID, "category_id", id)
	publishChange(ctx, s.events, ownerID, core.EntityCategory, core.ActionDeleted, id)
	return nil
}

// ResolveCategory finds a category by name ignoring case, creating a variable
// one of the requested kind when missing.
func (s *LedgerService) ResolveCategory(ctx context.Context, ownerID int64, name string, isIncome bool) (core.Category, error) {
	candidate := core.Category{Name: name, IsIncome: isIncome, ExpenseType: core.Variable}
	if err := candidate.Validate(); err != nil {
		return core.Category{}, err
	}
	c, created, err := s.storage.ResolveCategory(ctx, ownerID, name, isIncome)
	if err != nil {
		return core.Category{}, err
	}
	if created {
		slog.InfoContext(ctx, "Category created on demand", "owner_id", ownerID, "name", c.Name, "income", isIncome)
		publishChange(ctx, s.events, ownerID, core.EntityCategory, core.ActionCreated, c.ID)
	}
	return c, nil
}
