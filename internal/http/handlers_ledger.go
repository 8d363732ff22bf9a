package http

import (
	"net/http"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"
)

type transactionRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	CategoryID  *int64 `json:"category_id"`
	Description string `json:"description"`
	Date        string `json:"date"`
	ExpenseType string `json:"expense_type"`
}

// transactionPatchRequest leaves absent fields unchanged. clear_category
// drops the category explicitly.
type transactionPatchRequest struct {
	Type          *string `json:"type"`
	Amount        *string `json:"amount"`
	CategoryID    *int64  `json:"category_id"`
	ClearCategory bool    `json:"clear_category"`
	Description   *string `json:"description"`
	Date          *string `json:"date"`
	ExpenseType   *string `json:"expense_type"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f storage.TransactionFilter
	var err error

	// Either bound may be left open.
	if f.From, err = optionalDate(q, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.To, err = optionalDate(q, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Type, err = ParseKind(q); err != nil {
		writeError(w, r, err)
		return
	}
	if v := q.Get("category_id"); v != "" {
		cid, err := queryInt(q, "category_id")
		if err != nil || cid == 0 {
			writeError(w, r, invalidInput("category_id must be a positive integer"))
			return
		}
		id := int64(cid)
		f.CategoryID = &id
	}
	if f.Limit, err = queryInt(q, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Offset, err = queryInt(q, "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := s.deps.Ledger.ListTransactions(r.Context(), ledgerOwner(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(txs, toTransactionJSON))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.deps.Ledger.CreateTransaction(r.Context(), ledgerOwner(r), UserID(r.Context()), services.TransactionInput{
		Type:        core.TransactionType(req.Type),
		Amount:      amount,
		CategoryID:  req.CategoryID,
		Description: sanitizeInput(req.Description),
		Date:        date,
		ExpenseType: core.ExpenseType(req.ExpenseType),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.deps.Ledger.GetTransaction(r.Context(), ledgerOwner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := services.TransactionPatch{CategoryID: req.CategoryID, ClearCategory: req.ClearCategory}
	if req.Type != nil {
		t := core.TransactionType(*req.Type)
		patch.Type = &t
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Amount = &amount
	}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		patch.Description = &d
	}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Date = &d
	}
	if req.ExpenseType != nil {
		e := core.ExpenseType(*req.ExpenseType)
		patch.ExpenseType = &e
	}

	updated, err := s.deps.Ledger.UpdateTransaction(r.Context(), ledgerOwner(r), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Ledger.DeleteTransaction(r.Context(), ledgerOwner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Name        string `json:"name"`
	ExpenseType string `json:"expense_type"`
	IsIncome    bool   `json:"is_income"`
}

func (req categoryRequest) input() services.CategoryInput {
	et := core.ExpenseType(req.ExpenseType)
	if et == "" {
		et = core.Variable
	}
	return services.CategoryInput{Name: sanitizeInput(req.Name), ExpenseType: et, IsIncome: req.IsIncome}
}

// handleListCategories filters by ?type=income|expense so a form only offers
// categories matching the transaction kind.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := s.deps.Ledger.ListCategories(r.Context(), ledgerOwner(r), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(cats, toCategoryJSON))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Ledger.CreateCategory(r.Context(), ledgerOwner(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryJSON(created))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Ledger.GetCategory(r.Context(), ledgerOwner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryJSON(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.deps.Ledger.UpdateCategory(r.Context(), ledgerOwner(r), id, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryJSON(updated))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Ledger.DeleteCategory(r.Context(), ledgerOwner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type budgetRequest struct {
	CategoryID int64  `json:"category_id"`
	Limit      string `json:"limit"`
	Period     string `json:"period"`
}

func (req budgetRequest) input() (services.BudgetInput, error) {
	limit, err := parseAmount(req.Limit)
	if err != nil {
		return services.BudgetInput{}, err
	}
	period := core.Period(req.Period)
	if period == "" {
		period = core.Monthly
	}
	return services.BudgetInput{CategoryID: req.CategoryID, Limit: limit, Period: period}, nil
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	asOf, err := ParseAsOf(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := s.deps.Ledger.ListBudgets(r.Context(), ledgerOwner(r), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(budgets, toBudgetJSON))
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Ledger.CreateBudget(r.Context(), ledgerOwner(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeBudget(w, r, http.StatusCreated, created.ID)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeBudget(w, r, http.StatusOK, id)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.deps.Ledger.UpdateBudget(r.Context(), ledgerOwner(r), id, in); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeBudget(w, r, http.StatusOK, id)
}

// writeBudget responds with the budget's computed status for ?as_of.
func (s *Server) writeBudget(w http.ResponseWriter, r *http.Request, status int, id int64) {
	asOf, err := ParseAsOf(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deps.Ledger.GetBudget(r.Context(), ledgerOwner(r), id, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, toBudgetJSON(st))
}

// handleDeleteBudget never touches the budget's transactions.
func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Ledger.DeleteBudget(r.Context(), ledgerOwner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
