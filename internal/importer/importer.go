package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/services"
	ports "tally/internal/sheets"
	"tally/internal/storage"
)

const DefaultBatchSize = 50

// Result summarises a completed import. Failed batches are not retried.
type Result struct {
	Imported      int `json:"imported"`
	FailedRows    int `json:"failed_rows"`
	FailedBatches int `json:"failed_batches"`
}

// Importer validates files and inserts their rows into a ledger.
type Importer struct {
	storage   *storage.SQLiteRepository
	ledger    *services.LedgerService
	events    services.ChangePublisher
	sheets    ports.RangeReader
	batchSize int
}

// Option configures an Importer.
type Option func(*Importer)

// WithBatchSize sets how many rows share one SQL transaction.
func WithBatchSize(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.batchSize = n
		}
	}
}

// WithSheets enables importing from spreadsheet ranges.
func WithSheets(r ports.RangeReader) Option {
	return func(im *Importer) { im.sheets = r }
}

func New(store *storage.SQLiteRepository, ledger *services.LedgerService, events services.ChangePublisher, opts ...Option) *Importer {
	im := &Importer{
		storage:   store,
		ledger:    ledger,
		events:    events,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ErrSheetsDisabled is returned by ImportSheet when no range reader is configured.
var ErrSheetsDisabled = errors.New("spreadsheet import is not configured")

// Import reads a file of the given format into ownerID's ledger.
func (im *Importer) Import(ctx context.Context, ownerID, actorID int64, format Format, r io.Reader) (Result, error) {
	records, err := readRecords(format, r)
	if err != nil {
		return Result{}, &ValidationError{Errors: []RowError{{Row: 1, Message: err.Error()}}}
	}
	slog.InfoContext(ctx, "Import file read", "owner_id", ownerID, "format", format, "records", len(records))
	return im.importRecords(ctx, ownerID, actorID, records)
}

// ImportSheet reads an A1 range of a spreadsheet the service account can see.
func (im *Importer) ImportSheet(ctx context.Context, ownerID, actorID int64, spreadsheetID, rng string) (Result, error) {
	if im.sheets == nil {
		return Result{}, ErrSheetsDisabled
	}
	records, err := im.sheets.ReadRange(ctx, spreadsheetID, rng)
	if err != nil {
		return Result{}, fmt.Errorf("read spreadsheet: %w", err)
	}
	slog.InfoContext(ctx, "Import sheet read", "owner_id", ownerID, "range", rng, "records", len(records))
	return im.importRecords(ctx, ownerID, actorID, records)
}

func (im *Importer) importRecords(ctx context.Context, ownerID, actorID int64, records [][]string) (Result, error) {
	rows, err := parseRecords(records)
	if err != nil {
		return Result{}, err
	}

	categories, err := im.resolveCategories(ctx, ownerID, rows)
	if err != nil {
		return Result{}, err
	}

	txs := make([]core.Transaction, len(rows))
	for i, r := range rows {
		cat := categories[strings.ToLower(r.category)]
		t := core.Transaction{
			OwnerID:     ownerID,
			CreatedBy:   actorID,
			Type:        r.txType,
			Amount:      r.amount,
			CategoryID:  &cat.ID,
			Description: r.description,
			Date:        r.date,
			Source:      core.SourceImport,
		}
		if t.Description == "" {
			t.Description = cat.Name
		}
		if t.Type == core.Expense {
			t.ExpenseType = cat.ExpenseType
		}
		txs[i] = t
	}

	res := im.insertBatches(ctx, ownerID, txs)
	if res.Imported > 0 {
		if im.events != nil {
			if err := im.events.PublishChange(ctx, core.NewChangeEvent(ownerID, core.EntityTransaction, core.ActionBulk, 0)); err != nil {
				slog.ErrorContext(ctx, "Failed to publish import change event", "owner_id", ownerID, "error", err)
			}
		}
	}
	return res, nil
}

// resolveCategories looks every name up before creating anything, so a file
// whose rows disagree with existing categories is rejected without side effects.
func (im *Importer) resolveCategories(ctx context.Context, ownerID int64, rows []row) (map[string]core.Category, error) {
	type want struct {
		name     string
		isIncome bool
		line     int
	}
	wanted := map[string]want{}
	var order []string
	var errs []RowError

	for _, r := range rows {
		key := strings.ToLower(r.category)
		isIncome := r.txType == core.Income
		w, seen := wanted[key]
		if !seen {
			wanted[key] = want{name: r.category, isIncome: isIncome, line: r.line}
			order = append(order, key)
			continue
		}
		if w.isIncome != isIncome {
			errs = append(errs, RowError{Row: r.line, Column: ColCategory,
				Message: fmt.Sprintf("%q is used as %s on row %d", r.category, kindName(w.isIncome), w.line)})
		}
	}

	found := map[string]core.Category{}
	for _, key := range order {
		w := wanted[key]
		c, err := im.storage.FindCategoryByName(ctx, ownerID, w.name)
		if errors.Is(err, core.ErrNotFound) {
			// Checked up front so a rejected file never creates a category.
			created := core.Category{Name: w.name, IsIncome: w.isIncome, ExpenseType: core.Variable}
			if verr := created.Validate(); verr != nil {
				errs = append(errs, RowError{Row: w.line, Column: ColCategory, Message: verr.Error()})
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if c.IsIncome != w.isIncome {
			errs = append(errs, RowError{Row: w.line, Column: ColCategory,
				Message: fmt.Sprintf("%q is an %s category", c.Name, kindName(c.IsIncome))})
			continue
		}
		found[key] = c
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	for _, key := range order {
		if _, ok := found[key]; ok {
			continue
		}
		w := wanted[key]
		c, err := im.ledger.ResolveCategory(ctx, ownerID, w.name, w.isIncome)
		if err != nil {
			return nil, fmt.Errorf("create category %q: %w", w.name, err)
		}
		found[key] = c
	}
	return found, nil
}

func kindName(isIncome bool) string {
	if isIncome {
		return "income"
	}
	return "expense"
}

func (im *Importer) insertBatches(ctx context.Context, ownerID int64, txs []core.Transaction) Result {
	var (
		res   Result
		start = time.Now()
	)
	for from := 0; from < len(txs); from += im.batchSize {
		to := min(from+im.batchSize, len(txs))
		batch := txs[from:to]
		if err := im.storage.InsertTransactions(ctx, batch); err != nil {
			res.FailedBatches++
			res.FailedRows += len(batch)
			slog.ErrorContext(ctx, "Import batch failed",
				"owner_id", ownerID,
				"first_row", from+1,
				"rows", len(batch),
				"error", err)
			continue
		}
		res.Imported += len(batch)
	}
	slog.InfoContext(ctx, "Import completed",
		"owner_id", ownerID,
		"imported", res.Imported,
		"failed_rows", res.FailedRows,
		"failed_batches", res.FailedBatches,
		"duration", time.Since(start))
	return res
}
