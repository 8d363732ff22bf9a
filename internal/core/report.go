package core

// CategoryLine is the expense total of one category in a report.
type CategoryLine struct {
	CategoryID     *int64
	Name           string
	ExpenseType    ExpenseType
	Amount         Money
	BudgetLimit    Money
	PercentOfLimit float64
	Variance       Money // BudgetLimit - Amount
}

// ExpenseTypeLine groups expenses by classification.
type ExpenseTypeLine struct {
	ExpenseType ExpenseType // Empty for uncategorized spending
	Amount      Money
	Percent     float64
}

// Report summarizes a ledger over a date range.
type Report struct {
	OwnerID       int64
	From          Date
	To            Date
	Income        Money
	Expenses      Money
	Net           Money
	SavingsRate   int64
	ByCategory    []CategoryLine
	ByExpenseType []ExpenseTypeLine
	Budgets       []BudgetStatus
}
