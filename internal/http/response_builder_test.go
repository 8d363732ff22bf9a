package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"tally/internal/bank"
	"tally/internal/core"
	"tally/internal/importer"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("get: %w", core.ErrNotFound), http.StatusNotFound},
		{"forbidden", core.ErrForbidden, http.StatusForbidden},
		{"email mismatch", core.ErrInviteEmailMismatch, http.StatusForbidden},
		{"bad credentials", core.ErrInvalidCredentials, http.StatusUnauthorized},
		{"conflict", fmt.Errorf("%w: email", core.ErrConflict), http.StatusConflict},
		{"category in use", core.ErrCategoryInUse, http.StatusConflict},
		{"invite expired", core.ErrInviteExpired, http.StatusGone},
		{"validation", core.ErrInvalidAmount, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("%w: range", core.ErrInvalidDay), http.StatusBadRequest},
		{"malformed request", invalidInput("bad"), http.StatusBadRequest},
		{"import rejected", &importer.ValidationError{Errors: []importer.RowError{{Row: 2}}}, http.StatusUnprocessableEntity},
		{"bank disabled", bank.ErrDisabled, http.StatusServiceUnavailable},
		{"sheets disabled", importer.ErrSheetsDisabled, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("sql: connection refused at 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestWriteError_IncludesRowErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &importer.ValidationError{Errors: []importer.RowError{{Row: 3, Column: "amount", Message: "amount must be positive"}}}
	writeError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"row":3`)
	assert.Contains(t, rec.Body.String(), `"column":"amount"`)
}

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusCreated).Header("Location", "/x/1").Body(map[string]int{"id": 1}).Write(rec)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/x/1", rec.Header().Get("Location"))
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":1}`, rec.Body.String())
}
