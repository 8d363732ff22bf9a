// Package importer loads transactions in bulk from spreadsheets and bank
// statement files. A file is validated as a whole before anything is stored.
package importer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"tally/internal/core"
)

// Column names of the import layout, in template order.
const (
	ColDate        = "date"
	ColType        = "type"
	ColCategory    = "category"
	ColAmount      = "amount"
	ColDescription = "description"
)

// Columns is the header row expected at the top of every import.
var Columns = []string{ColDate, ColType, ColCategory, ColAmount, ColDescription}

var requiredColumns = []string{ColDate, ColType, ColCategory, ColAmount}

// RowError locates one problem. Rows count from 1 with the header as row 1.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d, %s: %s", e.Row, e.Column, e.Message)
}

// ValidationError rejects an import. It lists every problem found.
type ValidationError struct {
	Errors []RowError `json:"errors"`
}

func (e *ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "import rejected"
	case 1:
		return "import rejected: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("import rejected: %s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// row is one validated line of the file.
type row struct {
	line        int
	date        core.Date
	txType      core.TransactionType
	category    string
	amount      core.Money
	description string
}

type columnIndex map[string]int

func (ci columnIndex) cell(record []string, col string) string {
	i, ok := ci[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseHeader matches column names case-insensitively. Unknown columns are ignored.
func parseHeader(header []string) (columnIndex, []RowError) {
	ci := columnIndex{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := ci[name]; !dup && name != "" {
			ci[name] = i
		}
	}
	var errs []RowError
	for _, col := range requiredColumns {
		if _, ok := ci[col]; !ok {
			errs = append(errs, RowError{Row: 1, Column: col, Message: "missing column"})
		}
	}
	return ci, errs
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseRecords validates every data row. It returns the rows only when the
// whole file is clean.
func parseRecords(records [][]string) ([]row, error) {
	if len(records) == 0 || blank(records[0]) {
		return nil, &ValidationError{Errors: []RowError{{Row: 1, Message: "missing header row"}}}
	}
	ci, errs := parseHeader(records[0])
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	var rows []row
	for i, record := range records[1:] {
		line := i + 2
		if blank(record) {
			continue
		}
		r, rowErrs := parseRow(ci, record, line)
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		rows = append(rows, r)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	if len(rows) == 0 {
		return nil, &ValidationError{Errors: []RowError{{Row: 2, Message: "no data rows"}}}
	}
	return rows, nil
}

func parseRow(ci columnIndex, record []string, line int) (row, []RowError) {
	var (
		r    = row{line: line}
		errs []RowError
	)
	fail := func(col, msg string) {
		errs = append(errs, RowError{Row: line, Column: col, Message: msg})
	}

	if raw := ci.cell(record, ColDate); raw == "" {
		fail(ColDate, "required")
	} else if d, err := core.ParseDate(raw); err != nil {
		fail(ColDate, fmt.Sprintf("%q is not a YYYY-MM-DD date", raw))
	} else {
		r.date = d
	}

	raw := strings.ToLower(ci.cell(record, ColType))
	r.txType = core.TransactionType(raw)
	if !r.txType.Valid() {
		fail(ColType, fmt.Sprintf("%q must be income or expense", ci.cell(record, ColType)))
	}

	r.category = ci.cell(record, ColCategory)
	if r.category == "" {
		fail(ColCategory, "required")
	} else if utf8.RuneCountInString(r.category) > core.MaxCategoryNameLen {
		fail(ColCategory, fmt.Sprintf("longer than %d characters", core.MaxCategoryNameLen))
	}

	if raw := ci.cell(record, ColAmount); raw == "" {
		fail(ColAmount, "required")
	} else if cents, err := core.ParseDecimalToCents(raw); err != nil {
		fail(ColAmount, fmt.Sprintf("%q must be a positive number", raw))
	} else {
		r.amount = core.Money{Cents: cents}
	}

	r.description = ci.cell(record, ColDescription)
	if utf8.RuneCountInString(r.description) > core.MaxDescriptionLen {
		fail(ColDescription, fmt.Sprintf("longer than %d characters", core.MaxDescriptionLen))
	}

	return r, errs
}
