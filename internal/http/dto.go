package http

import (
	"time"

	"tally/internal/core"
)

// JSON views of domain types. Money crosses the wire as a decimal string
// and integer cents so clients never do float math on amounts.

type userJSON struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserJSON(u core.User) userJSON {
	return userJSON{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

type moneyJSON struct {
	Cents  int64  `json:"cents"`
	Amount string `json:"amount"`
}

func toMoneyJSON(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Amount: m.String()}
}

type transactionJSON struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	CreatedBy   int64     `json:"created_by"`
	Type        string    `json:"type"`
	Amount      moneyJSON `json:"amount"`
	CategoryID  *int64    `json:"category_id"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	ExpenseType string    `json:"expense_type,omitempty"`
	Source      string    `json:"source"`
	ExternalID  string    `json:"external_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		CreatedBy:   t.CreatedBy,
		Type:        string(t.Type),
		Amount:      toMoneyJSON(t.Amount),
		CategoryID:  t.CategoryID,
		Description: t.Description,
		Date:        t.Date.String(),
		ExpenseType: string(t.ExpenseType),
		Source:      string(t.Source),
		ExternalID:  t.ExternalID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type categoryJSON struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ExpenseType string    `json:"expense_type"`
	IsIncome    bool      `json:"is_income"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, ExpenseType: string(c.ExpenseType), IsIncome: c.IsIncome, CreatedAt: c.CreatedAt}
}

type budgetJSON struct {
	ID           int64     `json:"id"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Period       string    `json:"period"`
	Limit        moneyJSON `json:"limit"`
	Spent        moneyJSON `json:"spent"`
	Remaining    moneyJSON `json:"remaining"`
	PercentUsed  float64   `json:"percent_used"`
	WindowStart  string    `json:"window_start"`
	WindowEnd    string    `json:"window_end"`
}

func toBudgetJSON(b core.BudgetStatus) budgetJSON {
	return budgetJSON{
		ID:           b.ID,
		CategoryID:   b.CategoryID,
		CategoryName: b.CategoryName,
		Period:       string(b.Period),
		Limit:        toMoneyJSON(b.Limit),
		Spent:        toMoneyJSON(b.Spent),
		Remaining:    toMoneyJSON(b.Remaining),
		PercentUsed:  b.PercentUsed,
		WindowStart:  b.WindowStart.String(),
		WindowEnd:    b.WindowEnd.String(),
	}
}

type inviteJSON struct {
	ID         int64      `json:"id"`
	Email      string     `json:"email"`
	Permission string     `json:"permission"`
	State      string     `json:"state"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedBy *int64     `json:"accepted_by,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// toInviteJSON hides the token unless withToken is set; only the owner who
// just created the invite gets to see it.
func toInviteJSON(i core.Invite, withToken bool) inviteJSON {
	out := inviteJSON{
		ID:         i.ID,
		Email:      i.Email,
		Permission: string(i.Permission),
		State:      string(i.State),
		ExpiresAt:  i.ExpiresAt,
		AcceptedBy: i.AcceptedBy,
		AcceptedAt: i.AcceptedAt,
		CreatedAt:  i.CreatedAt,
	}
	if withToken {
		out.Token = i.Token
	}
	return out
}

type sharedLedgerJSON struct {
	OwnerID    int64  `json:"owner_id"`
	OwnerEmail string `json:"owner_email"`
	OwnerName  string `json:"owner_name"`
	Permission string `json:"permission"`
	InviteID   int64  `json:"invite_id"`
}

type categoryLineJSON struct {
	CategoryID     *int64    `json:"category_id"`
	Name           string    `json:"name"`
	ExpenseType    string    `json:"expense_type"`
	Amount         moneyJSON `json:"amount"`
	BudgetLimit    moneyJSON `json:"budget_limit"`
	PercentOfLimit float64   `json:"percent_of_limit"`
	Variance       moneyJSON `json:"variance"`
}

type expenseTypeLineJSON struct {
	ExpenseType string    `json:"expense_type"`
	Amount      moneyJSON `json:"amount"`
	Percent     float64   `json:"percent"`
}

type reportJSON struct {
	OwnerID       int64                 `json:"owner_id"`
	From          string                `json:"from"`
	To            string                `json:"to"`
	Income        moneyJSON             `json:"income"`
	Expenses      moneyJSON             `json:"expenses"`
	Net           moneyJSON             `json:"net"`
	SavingsRate   int64                 `json:"savings_rate"`
	ByCategory    []categoryLineJSON    `json:"by_category"`
	ByExpenseType []expenseTypeLineJSON `json:"by_expense_type"`
	Budgets       []budgetJSON          `json:"budgets"`
}

func toReportJSON(r core.Report) reportJSON {
	out := reportJSON{
		OwnerID:       r.OwnerID,
		From:          r.From.String(),
		To:            r.To.String(),
		Income:        toMoneyJSON(r.Income),
		Expenses:      toMoneyJSON(r.Expenses),
		Net:           toMoneyJSON(r.Net),
		SavingsRate:   r.SavingsRate,
		ByCategory:    make([]categoryLineJSON, 0, len(r.ByCategory)),
		ByExpenseType: make([]expenseTypeLineJSON, 0, len(r.ByExpenseType)),
		Budgets:       make([]budgetJSON, 0, len(r.Budgets)),
	}
	for _, l := range r.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryLineJSON{
			CategoryID:     l.CategoryID,
			Name:           l.Name,
			ExpenseType:    string(l.ExpenseType),
			Amount:         toMoneyJSON(l.Amount),
			BudgetLimit:    toMoneyJSON(l.BudgetLimit),
			PercentOfLimit: l.PercentOfLimit,
			Variance:       toMoneyJSON(l.Variance),
		})
	}
	for _, l := range r.ByExpenseType {
		name := string(l.ExpenseType)
		if name == "" {
			name = "uncategorized"
		}
		out.ByExpenseType = append(out.ByExpenseType, expenseTypeLineJSON{
			ExpenseType: name,
			Amount:      toMoneyJSON(l.Amount),
			Percent:     l.Percent,
		})
	}
	for _, b := range r.Budgets {
		out.Budgets = append(out.Budgets, toBudgetJSON(b))
	}
	return out
}

type bankItemJSON struct {
	ID              int64     `json:"id"`
	InstitutionName string    `json:"institution_name"`
	CreatedAt       time.Time `json:"created_at"`
}

func toBankItemJSON(b core.BankItem) bankItemJSON {
	return bankItemJSON{ID: b.ID, InstitutionName: b.InstitutionName, CreatedAt: b.CreatedAt}
}

// mapSlice converts a slice with f, returning an empty (not nil) slice.
func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
