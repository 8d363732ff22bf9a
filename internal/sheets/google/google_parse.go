package google

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultImportRange = "A:E"

// ParseSpreadsheetRef accepts a bare spreadsheet id or a docs.google.com URL
// and returns the id. A "#gid=" fragment is ignored; sheets are addressed by
// name in the range instead.
func ParseSpreadsheetRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty spreadsheet reference")
	}
	if !strings.Contains(ref, "/") {
		return ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse spreadsheet url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "d" && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("no spreadsheet id in %q", ref)
}

// ImportRange builds the A1 range covering the import columns of a sheet.
// An empty sheet name addresses the first sheet.
func ImportRange(sheet string) string {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return defaultImportRange
	}
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), defaultImportRange)
}
