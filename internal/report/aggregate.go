// Package report computes budget status and spending reports from ledger rows.
package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

const uncategorized = "Uncategorized"

var hundred = decimal.NewFromInt(100)

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole is 0.
func Percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	p := decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)).Round(2)
	f, _ := p.Float64()
	return f
}

// SavingsRate is (income - expenses) / income * 100 rounded half away from
// zero. Zero income yields 0.
func SavingsRate(income, expenses core.Money) int64 {
	if income.Cents == 0 {
		return 0
	}
	rate := decimal.NewFromInt(income.Cents - expenses.Cents).
		Mul(hundred).
		Div(decimal.NewFromInt(income.Cents)).
		Round(0)
	return rate.IntPart()
}

// Dedupe drops repeated transaction ids, keeping the first occurrence. Rows
// without an id are kept as-is.
func Dedupe(txs []core.Transaction) []core.Transaction {
	seen := make(map[int64]struct{}, len(txs))
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.ID != 0 {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
		}
		out = append(out, t)
	}
	return out
}

// BudgetStatus computes spending for the period window of b that contains asOf.
// Only expense transactions in the budget's category count, each id once.
func BudgetStatus(b core.Budget, categoryName string, txs []core.Transaction, asOf core.Date) (core.BudgetStatus, error) {
	w, err := core.WindowFor(b.Period)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	start, end := w.Window(asOf)

	var spent int64
	for _, t := range Dedupe(txs) {
		if t.Type != core.Expense || t.CategoryID == nil || *t.CategoryID != b.CategoryID {
			continue
		}
		if !core.Contains(start, end, t.Date) {
			continue
		}
		spent += t.Amount.Cents
	}

	return core.BudgetStatus{
		Budget:       b,
		CategoryName: categoryName,
		WindowStart:  start,
		WindowEnd:    end,
		Spent:        core.Money{Cents: spent},
		Remaining:    b.Limit.Sub(core.Money{Cents: spent}),
		PercentUsed:  Percent(spent, b.Limit.Cents),
	}, nil
}

// Build reduces a date range's rows into a report in one pass over the
// transactions. Rows outside [from, to] are ignored.
func Build(ownerID int64, from, to core.Date, txs []core.Transaction, budgets []core.Budget, categories []core.Category) core.Report {
	r := core.Report{OwnerID: ownerID, From: from, To: to}

	byID := make(map[int64]core.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	type bucket struct {
		line  core.CategoryLine
		limit int64
	}
	lines := make(map[int64]*bucket)
	var uncat *bucket
	byType := map[core.ExpenseType]int64{}

	lineFor := func(id *int64) *bucket {
		if id == nil {
			if uncat == nil {
				uncat = &bucket{line: core.CategoryLine{Name: uncategorized}}
			}
			return uncat
		}
		if b, ok := lines[*id]; ok {
			return b
		}
		cid := *id
		b := &bucket{line: core.CategoryLine{CategoryID: &cid, Name: uncategorized}}
		if c, ok := byID[cid]; ok {
			b.line.Name = c.Name
			b.line.ExpenseType = c.ExpenseType
		}
		lines[cid] = b
		return b
	}

	for _, t := range Dedupe(txs) {
		if !core.Contains(from, to, t.Date) {
			continue
		}
		if t.Type == core.Income {
			r.Income = r.Income.Add(t.Amount)
			continue
		}
		r.Expenses = r.Expenses.Add(t.Amount)
		lineFor(t.CategoryID).line.Amount.Cents += t.Amount.Cents
		byType[classify(t, byID)] += t.Amount.Cents
	}

	for _, b := range budgets {
		id := b.CategoryID
		if c, ok := byID[id]; ok && c.IsIncome {
			continue
		}
		lineFor(&id).limit += core.ScaleLimit(b.Limit, b.Period, from, to).Cents
	}

	r.Net = r.Income.Sub(r.Expenses)
	r.SavingsRate = SavingsRate(r.Income, r.Expenses)

	all := make([]*bucket, 0, len(lines)+1)
	for _, b := range lines {
		all = append(all, b)
	}
	if uncat != nil {
		all = append(all, uncat)
	}
	for _, b := range all {
		b.line.BudgetLimit = core.Money{Cents: b.limit}
		b.line.Variance = core.Money{Cents: b.limit - b.line.Amount.Cents}
		b.line.PercentOfLimit = Percent(b.line.Amount.Cents, b.limit)
		r.ByCategory = append(r.ByCategory, b.line)
	}
	sort.Slice(r.ByCategory, func(i, j int) bool {
		a, b := r.ByCategory[i], r.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	for _, et := range []core.ExpenseType{core.Fixed, core.Variable, core.ControllableFixed, ""} {
		amount, ok := byType[et]
		if !ok {
			continue
		}
		r.ByExpenseType = append(r.ByExpenseType, core.ExpenseTypeLine{
			ExpenseType: et,
			Amount:      core.Money{Cents: amount},
			Percent:     Percent(amount, r.Expenses.Cents),
		})
	}

	return r
}

// classify prefers the transaction's own tag over its category's.
func classify(t core.Transaction, categories map[int64]core.Category) core.ExpenseType {
	if t.ExpenseType != "" {
		return t.ExpenseType
	}
	if t.CategoryID != nil {
		if c, ok := categories[*t.CategoryID]; ok {
			return c.ExpenseType
		}
	}
	return ""
}
