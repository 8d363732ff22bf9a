package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	ports "tally/internal/sheets"
)

const templateSheet = "Transactions"

// Template is a downloadable starter file.
type Template struct {
	Filename    string
	ContentType string
	Data        []byte
}

var templateRows = [][]string{
	{"2024-01-31", "income", "Salary", "2500.00", "January salary"},
	{"2024-02-01", "expense", "Groceries", "54,30", "Weekly shopping"},
}

// BuildTemplate returns the header plus one example row of each type.
func BuildTemplate(format Format) (Template, error) {
	switch format {
	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(Columns); err != nil {
			return Template{}, fmt.Errorf("write csv header: %w", err)
		}
		if err := w.WriteAll(templateRows); err != nil {
			return Template{}, fmt.Errorf("write csv rows: %w", err)
		}
		return Template{
			Filename:    "tally-import.csv",
			ContentType: "text/csv; charset=utf-8",
			Data:        buf.Bytes(),
		}, nil

	case FormatXLSX:
		data, err := xlsxTemplate()
		if err != nil {
			return Template{}, err
		}
		return Template{
			Filename:    "tally-import.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}
	return Template{}, fmt.Errorf("no template for format %q", format)
}

// WriteSheetTemplate seeds the named tab of a spreadsheet with the header and
// example rows, so ImportSheet can read it back once filled in.
func WriteSheetTemplate(ctx context.Context, w ports.RangeWriter, spreadsheetID, sheet string) error {
	if sheet == "" {
		sheet = templateSheet
	}
	rows := make([][]string, 0, len(templateRows)+1)
	rows = append(rows, Columns)
	rows = append(rows, templateRows...)
	if err := w.WriteRange(ctx, spreadsheetID, fmt.Sprintf("'%s'!A1:E%d", strings.ReplaceAll(sheet, "'", "''"), len(rows)), rows); err != nil {
		return fmt.Errorf("write sheet template: %w", err)
	}
	return nil
}

func xlsxTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(templateSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, r := range templateRows {
		cells := make([]any, len(r))
		for j, v := range r {
			cells[j] = v
		}
		if err := f.SetSheetRow(templateSheet, fmt.Sprintf("A%d", i+2), &cells); err != nil {
			return nil, fmt.Errorf("write example row: %w", err)
		}
	}
	_ = f.SetColWidth(templateSheet, "A", "A", 12)
	_ = f.SetColWidth(templateSheet, "C", "C", 15)
	_ = f.SetColWidth(templateSheet, "E", "E", 30)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
