package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/storage"
)

func TestService_GenerateCachesPerLedgerVersion(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	defer store.Close()

	owner, err := store.CreateUser(ctx, core.User{Email: "owner@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	food, err := store.CreateCategory(ctx, core.Category{OwnerID: owner.ID, Name: "Food", ExpenseType: core.Variable})
	require.NoError(t, err)
	_, err = store.CreateBudget(ctx, core.Budget{OwnerID: owner.ID, CategoryID: food.ID, Limit: core.Money{Cents: 1000}, Period: core.Yearly})
	require.NoError(t, err)

	add := func(cents int64, d core.Date) {
		_, err := store.CreateTransaction(ctx, core.Transaction{
			OwnerID: owner.ID, CreatedBy: owner.ID, Type: core.Expense, Amount: core.Money{Cents: cents},
			CategoryID: &food.ID, Description: "groceries", Date: d,
		})
		require.NoError(t, err)
	}
	add(300, core.NewDate(2024, 1, 20))
	add(200, core.NewDate(2024, 6, 3))

	svc := NewService(store, time.Minute)
	from, to := core.NewDate(2024, 6, 1), core.NewDate(2024, 6, 30)

	r, err := svc.Generate(ctx, owner.ID, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(200), r.Expenses.Cents)
	require.Len(t, r.Budgets, 1)
	assert.Equal(t, int64(500), r.Budgets[0].Spent.Cents, "yearly budget sees the whole year")
	assert.Equal(t, int64(500), r.Budgets[0].Remaining.Cents)

	again, err := svc.Generate(ctx, owner.ID, from, to)
	require.NoError(t, err)
	assert.Equal(t, r, again)
	assert.Equal(t, 1, svc.Cache().Size(), "unchanged ledger is served from cache")

	// A write that no change event reports, as from another process.
	add(100, core.NewDate(2024, 6, 4))
	fresh, err := svc.Generate(ctx, owner.ID, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(300), fresh.Expenses.Cents)
	assert.Equal(t, int64(600), fresh.Budgets[0].Spent.Cents)

	require.NoError(t, svc.HandleChange(ctx, core.NewChangeEvent(owner.ID, core.EntityTransaction, core.ActionCreated, 0)))
	assert.Equal(t, 0, svc.Cache().Size(), "change events drop every entry of the owner")

	_, err = svc.Generate(ctx, owner.ID, to, from)
	assert.Error(t, err)
}
