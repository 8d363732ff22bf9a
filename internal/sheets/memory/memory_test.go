package memory

import (
	"context"
	"testing"
)

func TestStore_ReadWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Put("sheet-1", "", [][]string{{"date", "type"}, {"2024-01-01", "expense"}})

	rows, err := s.ReadRange(ctx, "sheet-1", "A:E")
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "expense" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	rows[1][1] = "mutated"
	again, _ := s.ReadRange(ctx, "sheet-1", "A:E")
	if again[1][1] != "expense" {
		t.Error("ReadRange must return a copy")
	}

	if err := s.WriteRange(ctx, "sheet-1", "'Bob''s'!A1:B1", [][]string{{"x"}}); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}
	named, err := s.ReadRange(ctx, "sheet-1", "'Bob''s'!A:E")
	if err != nil || len(named) != 1 {
		t.Fatalf("named sheet: %v %v", named, err)
	}

	if _, err := s.ReadRange(ctx, "missing", "A:E"); err == nil {
		t.Error("expected error for unknown spreadsheet")
	}
}
