package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/bank"
	"tally/internal/importer"
	"tally/internal/realtime"
	"tally/internal/report"
	"tally/internal/services"
	"tally/internal/storage"
	"tally/internal/worker"
)

const testSecret = "test-secret-0123456789"

type testEnv struct {
	srv *Server
	hub *realtime.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	access, err := services.NewAccessService(store, time.Minute)
	require.NoError(t, err)
	t.Cleanup(access.Close)

	hub := realtime.NewHub(0)
	reports := report.NewService(store, time.Minute)
	events := worker.NewChangeWorker(reports, worker.ChangeSinkFunc(hub.PublishChange))
	ledger := services.NewLedgerService(store, events)

	srv := NewServer(":0", Deps{
		Accounts:          services.NewAccountService(store),
		Access:            access,
		Ledger:            ledger,
		Collaborators:     services.NewCollaboratorService(store, access, events),
		Records:           services.NewRecordService(store),
		Reports:           reports,
		Importer:          importer.New(store, ledger, events, importer.WithBatchSize(2)),
		Bank:              bank.NewService(store, ledger, events, nil),
		Hub:               hub,
		Tokens:            NewTokenIssuer(testSecret, time.Hour),
		DB:                store,
		RequestsPerMinute: 10000,
		InviteTTL:         services.DefaultInviteTTL,
	})
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testEnv{srv: srv, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

type session struct {
	Token string
	ID    int64
}

func (e *testEnv) register(t *testing.T, email string) session {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "name": strings.Split(email, "@")[0], "password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return session{Token: resp.Token, ID: resp.User.ID}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func ledgerPath(owner int64, rest string) string {
	return fmt.Sprintf("/api/ledgers/%d%s", owner, rest)
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ALICE@example.com", "password": "correct horse"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[userJSON](t, rec)
	assert.Equal(t, "alice@example.com", me.Email)

	rec = env.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "alice@example.com", "password": "another pass"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLedger_TypeSwitchClearsCategory(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, ledgerPath(alice.ID, "/categories"), alice.Token, map[string]any{"name": "Groceries", "expense_type": "variable"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	groceries := decode[categoryJSON](t, rec)

	rec = env.do(t, http.MethodPost, ledgerPath(alice.ID, "/categories"), alice.Token, map[string]any{"name": "Salary", "is_income": true})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/categories?type=income"), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	income := decode[[]categoryJSON](t, rec)
	require.Len(t, income, 1)
	assert.Equal(t, "Salary", income[0].Name)

	rec = env.do(t, http.MethodPost, ledgerPath(alice.ID, "/transactions"), alice.Token, map[string]any{
		"type": "expense", "amount": "42,50", "category_id": groceries.ID, "description": "Market", "date": "2024-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decode[transactionJSON](t, rec)
	assert.Equal(t, int64(4250), tx.Amount.Cents)
	assert.Equal(t, "variable", tx.ExpenseType)
	assert.Equal(t, alice.ID, tx.CreatedBy)

	rec = env.do(t, http.MethodPatch, ledgerPath(alice.ID, fmt.Sprintf("/transactions/%d", tx.ID)), alice.Token, map[string]any{"type": "income"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[transactionJSON](t, rec)
	assert.Equal(t, "income", updated.Type)
	assert.Nil(t, updated.CategoryID)

	rec = env.do(t, http.MethodPost, ledgerPath(alice.ID, "/transactions"), alice.Token, map[string]any{
		"type": "income", "amount": "10", "category_id": groceries.ID, "description": "Refund", "date": "2024-03-11",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, ledgerPath(alice.ID, "/transactions"), alice.Token, map[string]any{
		"type": "expense", "amount": "-3", "description": "Bad", "date": "2024-03-11",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/transactions?type=income&from=2024-03-01&to=2024-03-31"), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]transactionJSON](t, rec), 1)

	rec = env.do(t, http.MethodDelete, ledgerPath(alice.ID, fmt.Sprintf("/transactions/%d", tx.ID)), alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, fmt.Sprintf("/transactions/%d", tx.ID)), alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedger_BudgetRemaining(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, ledgerPath(alice.ID, "/categories"), alice.Token, map[string]any{"name": "Dining"})
	require.Equal(t, http.StatusCreated, rec.Code)
	dining := decode[categoryJSON](t, rec)

	rec = env.do(t, http.MethodPost, ledgerPath(alice.ID, "/budgets?as_of=2024-05-15"), alice.Token, map[string]any{
		"category_id": dining.ID, "limit": "100.00", "period": "monthly",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[budgetJSON](t, rec)

	for _, amount := range []string{"30.00", "80.00"} {
		rec = env.do(t, http.MethodPost, ledgerPath(alice.ID, "/transactions"), alice.Token, map[string]any{
			"type": "expense", "amount": amount, "category_id": dining.ID, "description": "Dinner", "date": "2024-05-03",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, fmt.Sprintf("/budgets/%d?as_of=2024-05-15", b.ID)), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[budgetJSON](t, rec)
	assert.Equal(t, int64(11000), st.Spent.Cents)
	assert.Equal(t, int64(-1000), st.Remaining.Cents)
	assert.Equal(t, st.Limit.Cents-st.Spent.Cents, st.Remaining.Cents)
	assert.Equal(t, 110.0, st.PercentUsed)
	assert.Equal(t, "2024-05-01", st.WindowStart)

	rec = env.do(t, http.MethodDelete, ledgerPath(alice.ID, fmt.Sprintf("/budgets/%d", b.ID)), alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/transactions"), alice.Token, nil)
	assert.Len(t, decode[[]transactionJSON](t, rec), 2, "deleting a budget keeps its transactions")
}

func TestLedger_CollaboratorAccess(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	rec := env.do(t, http.MethodGet, ledgerPath(alice.ID, "/transactions"), bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, ledgerPath(alice.ID, "/invites"), alice.Token, map[string]any{"email": "Bob@Example.com", "permission": "view_only"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[inviteJSON](t, rec)
	require.NotEmpty(t, inv.Token)

	rec = env.do(t, http.MethodPost, "/api/invites/accept", bob.Token, map[string]string{"token": inv.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/transactions"), bob.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, ledgerPath(alice.ID, "/categories"), bob.Token, map[string]any{"name": "Sneaky"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "view_only cannot write")
	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/invites"), bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the owner manages invites")

	rec = env.do(t, http.MethodGet, "/api/shared", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	shared := decode[[]sharedLedgerJSON](t, rec)
	require.Len(t, shared, 1)
	assert.Equal(t, alice.ID, shared[0].OwnerID)

	rec = env.do(t, http.MethodDelete, ledgerPath(alice.ID, fmt.Sprintf("/invites/%d", inv.ID)), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/collaborators"), alice.Token, nil)
	assert.Empty(t, decode[[]inviteJSON](t, rec))
	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/transactions"), bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "revocation takes effect immediately")
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImport_RejectsWholeFile(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	csv := "date,type,category,amount,description\n" +
		"2024-01-05,expense,Food,12.00,Lunch\n" +
		"2024-01-06,expense,Food,-4.00,Coffee\n"
	body, ct := multipartBody(t, "jan.csv", csv)
	req := httptest.NewRequest(http.MethodPost, ledgerPath(alice.ID, "/imports"), body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode[errorBody](t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 3, resp.Errors[0].Row)
	assert.Equal(t, importer.ColAmount, resp.Errors[0].Column)

	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/transactions"), alice.Token, nil)
	assert.Empty(t, decode[[]transactionJSON](t, rec))
	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/categories"), alice.Token, nil)
	assert.Empty(t, decode[[]categoryJSON](t, rec))
}

func TestImport_CSVAndReport(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	csv := "date,type,category,amount,description\n" +
		"2024-01-01,income,Salary,2000.00,January\n" +
		"2024-01-05,expense,Rent,1000.00,\n" +
		"2024-01-09,expense,Food,333.33,Groceries\n"
	body, ct := multipartBody(t, "jan.csv", csv)
	req := httptest.NewRequest(http.MethodPost, ledgerPath(alice.ID, "/imports"), body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, importer.Result{Imported: 3}, decode[importer.Result](t, rec))

	rec = env.do(t, http.MethodGet, ledgerPath(alice.ID, "/report?from=2024-01-01&to=2024-01-31"), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decode[reportJSON](t, rec)
	assert.Equal(t, int64(200000), rep.Income.Cents)
	assert.Equal(t, int64(133333), rep.Expenses.Cents)
	// (2000 - 1333.33) / 2000 = 33.33%
	assert.Equal(t, int64(33), rep.SavingsRate)
}

func TestImport_Template(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodGet, "/api/imports/template/csv", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "date,type,category,amount,description"))

	rec = env.do(t, http.MethodGet, "/api/imports/template/pdf", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBank_DisabledWithoutPlaid(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, ledgerPath(alice.ID, "/bank/link-token"), alice.Token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecords_AppendOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/api/consents", alice.Token, map[string]any{"consent_type": "analytics", "granted": true, "policy_version": "2024-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/consents", alice.Token, map[string]any{"consent_type": "analytics", "granted": false, "policy_version": "2024-01"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/consents", alice.Token, nil)
	consents := decode[[]consentJSON](t, rec)
	require.Len(t, consents, 2)
	assert.False(t, consents[0].Granted, "newest first")

	rec = env.do(t, http.MethodPost, "/api/feedback", alice.Token, map[string]any{"rating": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/events", "", map[string]any{"name": "page_view", "properties": map[string]any{"page": "/"}})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestChanges_StreamDeliversEvents(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+ledgerPath(alice.ID, "/changes")+"?access_token="+alice.Token, nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return env.hub.Subscribers(alice.ID) == 1 }, time.Second, 10*time.Millisecond)

	rec := env.do(t, http.MethodPost, ledgerPath(alice.ID, "/categories"), alice.Token, map[string]any{"name": "Travel"})
	require.Equal(t, http.StatusCreated, rec.Code)

	buf := make([]byte, 4096)
	var got strings.Builder
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(got.String(), "event: change") && time.Now().Before(deadline) {
		n, err := resp.Body.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			break
		}
	}
	assert.Contains(t, got.String(), "event: change")
	assert.Contains(t, got.String(), `"entity":"category"`)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
