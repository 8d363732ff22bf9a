// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tally/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errInvalidInput marks malformed requests that never reached a service.
var errInvalidInput = errors.New("invalid input")

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidInput, fmt.Sprintf(format, args...))
}

// decodeJSON reads one JSON object into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidInput("request body is empty")
		}
		return invalidInput("malformed JSON: %v", err)
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidInput("%s must be a positive integer", name)
	}
	return id, nil
}

// DateRange is a parsed from/to query pair.
type DateRange struct {
	From core.Date
	To   core.Date
}

// ParseDateRange reads from and to (YYYY-MM-DD) from query parameters,
// defaulting to the current calendar month.
func ParseDateRange(query url.Values, now time.Time) (DateRange, error) {
	start, end := core.MonthlyWindow{}.Window(core.DateOf(now))
	rng := DateRange{From: start, To: end}

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return DateRange{}, invalidInput("from must be YYYY-MM-DD")
		}
		rng.From = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return DateRange{}, invalidInput("to must be YYYY-MM-DD")
		}
		rng.To = d
	}
	if rng.To.Before(rng.From.Time) {
		return DateRange{}, invalidInput("to must not be before from")
	}
	return rng, nil
}

// optionalDate reads a YYYY-MM-DD query parameter, returning the zero date when absent.
func optionalDate(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, invalidInput("%s must be YYYY-MM-DD", key)
	}
	return d, nil
}

// ParseAsOf reads the as_of query parameter, defaulting to today.
func ParseAsOf(query url.Values, now time.Time) (core.Date, error) {
	v := strings.TrimSpace(query.Get("as_of"))
	if v == "" {
		return core.DateOf(now), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, invalidInput("as_of must be YYYY-MM-DD")
	}
	return d, nil
}

// ParseKind reads the optional type filter.
func ParseKind(query url.Values) (core.TransactionType, error) {
	v := core.TransactionType(strings.ToLower(strings.TrimSpace(query.Get("type"))))
	if v == "" || v.Valid() {
		return v, nil
	}
	return "", core.ErrInvalidType
}

// queryInt reads an optional non-negative integer.
func queryInt(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, invalidInput("%s must be a non-negative integer", key)
	}
	return n, nil
}

// parseAmount accepts a decimal string ("12,50" or "12.50").
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(s))
	if err != nil {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.Money{Cents: cents}, nil
}

// parseDate parses a YYYY-MM-DD body field.
func parseDate(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, invalidInput("date must be YYYY-MM-DD")
	}
	return d, nil
}

// sanitizeInput removes control characters other than tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
