package core

import "testing"

func TestWindows(t *testing.T) {
	ref := NewDate(2024, 2, 14) // Wednesday

	tests := []struct {
		period     Period
		start, end Date
	}{
		{Monthly, NewDate(2024, 2, 1), NewDate(2024, 2, 29)},
		{Weekly, NewDate(2024, 2, 12), NewDate(2024, 2, 18)},
		{Yearly, NewDate(2024, 1, 1), NewDate(2024, 12, 31)},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			w, err := WindowFor(tt.period)
			if err != nil {
				t.Fatalf("WindowFor: %v", err)
			}
			start, end := w.Window(ref)
			if !start.Equal(tt.start.Time) || !end.Equal(tt.end.Time) {
				t.Errorf("got %s..%s, want %s..%s", start, end, tt.start, tt.end)
			}
		})
	}
}

func TestWeeklyWindow_Sunday(t *testing.T) {
	start, end := WeeklyWindow{}.Window(NewDate(2024, 2, 18))
	if start.String() != "2024-02-12" || end.String() != "2024-02-18" {
		t.Fatalf("sunday belongs to the week that started on monday, got %s..%s", start, end)
	}
}

func TestWindowFor_Unknown(t *testing.T) {
	if _, err := WindowFor("daily"); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestScaleLimit(t *testing.T) {
	limit := Money{Cents: 3000}

	if got := ScaleLimit(limit, Monthly, NewDate(2024, 2, 1), NewDate(2024, 2, 29)); got != limit {
		t.Errorf("exact month should keep limit, got %d", got.Cents)
	}
	if got := ScaleLimit(limit, Monthly, NewDate(2024, 1, 1), NewDate(2024, 1, 15)); got.Cents != 1500 {
		t.Errorf("half month should halve limit, got %d", got.Cents)
	}
	if got := ScaleLimit(Money{Cents: 700}, Weekly, NewDate(2024, 1, 1), NewDate(2024, 1, 14)); got.Cents != 1400 {
		t.Errorf("two weeks should double limit, got %d", got.Cents)
	}
}

func TestContains(t *testing.T) {
	start, end := NewDate(2024, 1, 1), NewDate(2024, 1, 31)
	if !Contains(start, end, start) || !Contains(start, end, end) {
		t.Fatal("window bounds are inclusive")
	}
	if Contains(start, end, NewDate(2024, 2, 1)) {
		t.Fatal("date after window should not be contained")
	}
}
