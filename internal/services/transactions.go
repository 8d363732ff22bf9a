package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/storage"
)

// TransactionInput describes a new transaction.
type TransactionInput struct {
	Type        core.TransactionType
	Amount      core.Money
	CategoryID  *int64
	Description string
	Date        core.Date
	ExpenseType core.ExpenseType
}

// TransactionPatch holds the fields to change; nil fields are kept. A type
// change without a CategoryID clears the category, since the old one belongs
// to the other kind.
type TransactionPatch struct {
	Type          *core.TransactionType
	Amount        *core.Money
	CategoryID    *int64
	ClearCategory bool
	Description   *string
	Date          *core.Date
	ExpenseType   *core.ExpenseType
}

// prepare validates t against its category and fills the expense-type tag
// from the category when the caller left it empty.
func (s *LedgerService) prepare(ctx context.Context, t *core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Type == core.Income {
		t.ExpenseType = ""
	}
	if t.CategoryID == nil {
		return nil
	}
	cat, err := s.storage.GetCategory(ctx, t.OwnerID, *t.CategoryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrUnknownCategory
	}
	if err != nil {
		return fmt.Errorf("load category: %w", err)
	}
	if !t.MatchesCategory(cat) {
		return core.ErrCategoryMismatch
	}
	if t.Type == core.Expense && t.ExpenseType == "" {
		t.ExpenseType = cat.ExpenseType
	}
	return nil
}

// CreateTransaction stores a manual transaction attributed to actorID.
func (s *LedgerService) CreateTransaction(ctx context.Context, ownerID, actorID int64, in TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		OwnerID:     ownerID,
		CreatedBy:   actorID,
		Type:        in.Type,
		Amount:      in.Amount,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		Date:        in.Date,
		ExpenseType: in.ExpenseType,
		Source:      core.SourceManual,
	}
	if err := s.prepare(ctx, &t); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.storage.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx).WithComponent(log.ComponentLedger)).
		LogTransactionCreated(ctx, actorID, ownerID, created.ID, string(created.Type), created.Amount.Cents, created.CategoryID)

	publishChange(ctx, s.events, ownerID, core.EntityTransaction, core.ActionCreated, created.ID)
	s.notifyBudgetCrossings(ctx, created, created.Amount.Cents)
	return created, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, ownerID, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, ownerID int64, f storage.TransactionFilter) ([]core.Transaction, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, core.ErrInvalidType
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return nil, fmt.Errorf("%w: range ends before it starts", core.ErrInvalidDay)
	}
	return s.storage.ListTransactions(ctx, ownerID, f)
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, ownerID, id int64, p TransactionPatch) (core.Transaction, error) {
	old, err := s.storage.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}

	t := old
	if p.Type != nil && *p.Type != old.Type {
		t.Type = *p.Type
		t.CategoryID = nil
		t.ExpenseType = ""
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		cid := *p.CategoryID
		t.CategoryID = &cid
		if p.ExpenseType == nil {
			t.ExpenseType = ""
		}
	}
	if p.ClearCategory {
		t.CategoryID = nil
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.ExpenseType != nil {
		t.ExpenseType = *p.ExpenseType
	}

	if err := s.prepare(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		"owner_id", ownerID,
		"transaction_id", id,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)
	publishChange(ctx, s.events, ownerID, core.EntityTransaction, core.ActionUpdated, id)

	delta := t.Amount.Cents
	if old.Type == core.Expense && sameCategory(old.CategoryID, t.CategoryID) && old.Date.Equal(t.Date.Time) {
		delta -= old.Amount.Cents
	}
	s.notifyBudgetCrossings(ctx, t, delta)
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, ownerID, id int64) error {
	if err := s.storage.DeleteTransaction(ctx, ownerID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted", "owner_id", ownerID, "transaction_id", id)
	publishChange(ctx, s.events, ownerID, core.EntityTransaction, core.ActionDeleted, id)
	return nil
}

func sameCategory(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
