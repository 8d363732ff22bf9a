// Package sheets defines how spreadsheet-hosted data reaches the importer.
package sheets

import "context"

// Ports for outbound adapters.
type (
	// RangeReader returns the cell values of an A1 range as trimmed strings,
	// one slice per row. Trailing empty cells may be omitted.
	RangeReader interface {
		ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	}

	// RangeWriter overwrites an A1 range with the given rows.
	RangeWriter interface {
		WriteRange(ctx context.Context, spreadsheetID, rng string, rows [][]string) error
	}
)
