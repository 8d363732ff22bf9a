// Package memory is an in-process spreadsheet used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ports "tally/internal/sheets"
)

// Store keeps spreadsheets as row slices keyed by id and sheet name.
type Store struct {
	mu     sync.Mutex
	sheets map[string][][]string
}

var (
	_ ports.RangeReader = (*Store)(nil)
	_ ports.RangeWriter = (*Store)(nil)
)

func New() *Store {
	return &Store{sheets: map[string][][]string{}}
}

// Put replaces the rows of one sheet.
func (s *Store) Put(spreadsheetID, sheet string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[key(spreadsheetID, sheet)] = cloneRows(rows)
}

// ReadRange returns the whole sheet named in rng; column bounds are ignored.
func (s *Store) ReadRange(_ context.Context, spreadsheetID, rng string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.sheets[key(spreadsheetID, sheetOf(rng))]
	if !ok {
		return nil, fmt.Errorf("read %s: spreadsheet %q not found", rng, spreadsheetID)
	}
	return cloneRows(rows), nil
}

func (s *Store) WriteRange(_ context.Context, spreadsheetID, rng string, rows [][]string) error {
	s.Put(spreadsheetID, sheetOf(rng), rows)
	return nil
}

func key(id, sheet string) string {
	return id + "\x00" + sheet
}

// sheetOf extracts the sheet name from an A1 range such as 'My Sheet'!A:E.
func sheetOf(rng string) string {
	i := strings.LastIndex(rng, "!")
	if i < 0 {
		return ""
	}
	name := rng[:i]
	if strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") && len(name) >= 2 {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}

func cloneRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, row := range in {
		out[i] = append([]string(nil), row...)
	}
	return out
}
