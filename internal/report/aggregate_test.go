package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
)

func ptr(v int64) *int64 { return &v }

func expense(id, cat, cents int64, d core.Date) core.Transaction {
	return core.Transaction{ID: id, Type: core.Expense, Amount: core.Money{Cents: cents}, CategoryID: ptr(cat), Date: d, Description: "x"}
}

func TestSavingsRate(t *testing.T) {
	tests := []struct {
		name     string
		income   int64
		expenses int64
		want     int64
	}{
		{"zero income yields zero", 0, 5000, 0},
		{"zero income and expenses", 0, 0, 0},
		{"quarter spent", 100000, 25000, 75},
		{"rounds down below half", 300, 200, 33},
		{"rounds up above half", 300, 100, 67},
		{"half rounds away from zero", 200, 101, 50},
		{"negative half rounds away from zero", 200, 225, -13},
		{"overspent", 1000, 3000, -200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SavingsRate(core.Money{Cents: tt.income}, core.Money{Cents: tt.expenses})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(500, 0))
	assert.Equal(t, 50.0, Percent(1, 2))
	assert.Equal(t, 33.33, Percent(1, 3))
	assert.Equal(t, 150.0, Percent(3, 2))
}

func TestBudgetStatus(t *testing.T) {
	budget := core.Budget{ID: 1, CategoryID: 7, Limit: core.Money{Cents: 10000}, Period: core.Monthly}
	asOf := core.NewDate(2024, 3, 15)

	t.Run("remaining is limit minus spent without double counting", func(t *testing.T) {
		dup := expense(1, 7, 3000, core.NewDate(2024, 3, 2))
		txs := []core.Transaction{
			dup,
			dup,
			expense(2, 7, 1500, core.NewDate(2024, 3, 31)),
			expense(3, 7, 9999, core.NewDate(2024, 2, 29)), // previous window
			expense(4, 8, 9999, core.NewDate(2024, 3, 10)), // other category
			{ID: 5, Type: core.Income, Amount: core.Money{Cents: 9999}, CategoryID: ptr(7), Date: core.NewDate(2024, 3, 10)},
		}

		st, err := BudgetStatus(budget, "Food", txs, asOf)
		require.NoError(t, err)
		assert.Equal(t, int64(4500), st.Spent.Cents)
		assert.Equal(t, budget.Limit.Cents-st.Spent.Cents, st.Remaining.Cents)
		assert.Equal(t, 45.0, st.PercentUsed)
		assert.Equal(t, core.NewDate(2024, 3, 1), st.WindowStart)
		assert.Equal(t, core.NewDate(2024, 3, 31), st.WindowEnd)
		assert.Equal(t, "Food", st.CategoryName)
	})

	t.Run("overspending gives negative remaining", func(t *testing.T) {
		st, err := BudgetStatus(budget, "Food", []core.Transaction{expense(1, 7, 12500, asOf)}, asOf)
		require.NoError(t, err)
		assert.Equal(t, int64(-2500), st.Remaining.Cents)
		assert.Equal(t, 125.0, st.PercentUsed)
	})

	t.Run("weekly window", func(t *testing.T) {
		weekly := budget
		weekly.Period = core.Weekly
		txs := []core.Transaction{
			expense(1, 7, 100, core.NewDate(2024, 3, 11)), // Monday
			expense(2, 7, 100, core.NewDate(2024, 3, 17)), // Sunday
			expense(3, 7, 100, core.NewDate(2024, 3, 18)), // next Monday
		}
		st, err := BudgetStatus(weekly, "Food", txs, asOf)
		require.NoError(t, err)
		assert.Equal(t, int64(200), st.Spent.Cents)
	})

	t.Run("unknown period", func(t *testing.T) {
		bad := budget
		bad.Period = "daily"
		_, err := BudgetStatus(bad, "Food", nil, asOf)
		assert.Error(t, err)
	})
}

func TestBuild(t *testing.T) {
	from, to := core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31)
	categories := []core.Category{
		{ID: 1, Name: "Rent", ExpenseType: core.Fixed},
		{ID: 2, Name: "Food", ExpenseType: core.Variable},
		{ID: 3, Name: "Salary", ExpenseType: core.Fixed, IsIncome: true},
		{ID: 4, Name: "Travel", ExpenseType: core.Variable},
	}
	budgets := []core.Budget{
		{ID: 1, CategoryID: 2, Limit: core.Money{Cents: 40000}, Period: core.Monthly},
		{ID: 2, CategoryID: 4, Limit: core.Money{Cents: 10000}, Period: core.Monthly},
	}
	food := expense(3, 2, 30000, core.NewDate(2024, 3, 12))
	txs := []core.Transaction{
		{ID: 1, Type: core.Income, Amount: core.Money{Cents: 300000}, CategoryID: ptr(3), Date: core.NewDate(2024, 3, 1)},
		expense(2, 1, 100000, core.NewDate(2024, 3, 1)),
		food,
		food,
		{ID: 4, Type: core.Expense, Amount: core.Money{Cents: 20000}, Date: core.NewDate(2024, 3, 20)},
		{ID: 5, Type: core.Expense, Amount: core.Money{Cents: 5000}, CategoryID: ptr(2), ExpenseType: core.ControllableFixed, Date: core.NewDate(2024, 3, 21)},
		expense(6, 1, 100000, core.NewDate(2024, 4, 1)), // out of range
	}

	r := Build(42, from, to, txs, budgets, categories)

	assert.Equal(t, int64(300000), r.Income.Cents)
	assert.Equal(t, int64(155000), r.Expenses.Cents)
	assert.Equal(t, int64(145000), r.Net.Cents)
	assert.Equal(t, int64(48), r.SavingsRate)

	require.Len(t, r.ByCategory, 4)
	assert.Equal(t, "Rent", r.ByCategory[0].Name)
	foodLine := r.ByCategory[1]
	assert.Equal(t, "Food", foodLine.Name)
	assert.Equal(t, int64(35000), foodLine.Amount.Cents)
	assert.Equal(t, int64(40000), foodLine.BudgetLimit.Cents)
	assert.Equal(t, 87.5, foodLine.PercentOfLimit)
	assert.Equal(t, int64(5000), foodLine.Variance.Cents)

	uncat := r.ByCategory[2]
	assert.Nil(t, uncat.CategoryID)
	assert.Equal(t, int64(20000), uncat.Amount.Cents)
	assert.Equal(t, 0.0, uncat.PercentOfLimit)

	travel := r.ByCategory[3]
	assert.Equal(t, "Travel", travel.Name)
	assert.Zero(t, travel.Amount.Cents)
	assert.Equal(t, int64(10000), travel.Variance.Cents)

	byType := map[core.ExpenseType]core.ExpenseTypeLine{}
	for _, l := range r.ByExpenseType {
		byType[l.ExpenseType] = l
	}
	assert.Equal(t, int64(100000), byType[core.Fixed].Amount.Cents)
	assert.Equal(t, int64(30000), byType[core.Variable].Amount.Cents)
	assert.Equal(t, int64(5000), byType[core.ControllableFixed].Amount.Cents)
	assert.Equal(t, int64(20000), byType[""].Amount.Cents)
	assert.Equal(t, 64.52, byType[core.Fixed].Percent)
}

func TestBuild_NoIncome(t *testing.T) {
	r := Build(1, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31),
		[]core.Transaction{expense(1, 1, 500, core.NewDate(2024, 1, 5))}, nil, nil)
	assert.Equal(t, int64(0), r.SavingsRate)
	assert.Equal(t, int64(-500), r.Net.Cents)
	require.Len(t, r.ByExpenseType, 1)
	assert.Equal(t, 100.0, r.ByExpenseType[0].Percent)
}
