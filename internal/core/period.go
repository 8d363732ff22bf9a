package core

import (
	"fmt"
	"time"
)

// Windower computes the inclusive calendar window of a budget period
// that contains a reference date.
type Windower interface {
	Window(ref Date) (start, end Date)
}

// MonthlyWindow is the calendar month.
type MonthlyWindow struct{}

func (MonthlyWindow) Window(ref Date) (Date, Date) {
	start := NewDate(ref.Year(), int(ref.Month()), 1)
	end := Date{Time: start.AddDate(0, 1, -1)}
	return start, end
}

// WeeklyWindow is the ISO week, Monday through Sunday.
type WeeklyWindow struct{}

func (WeeklyWindow) Window(ref Date) (Date, Date) {
	offset := (int(ref.Weekday()) + 6) % 7
	start := DateOf(ref.AddDate(0, 0, -offset))
	end := Date{Time: start.AddDate(0, 0, 6)}
	return start, end
}

// YearlyWindow is the calendar year.
type YearlyWindow struct{}

func (YearlyWindow) Window(ref Date) (Date, Date) {
	return NewDate(ref.Year(), 1, 1), NewDate(ref.Year(), 12, 31)
}

var periodWindows = map[Period]Windower{
	Monthly: MonthlyWindow{},
	Weekly:  WeeklyWindow{},
	Yearly:  YearlyWindow{},
}

// WindowFor returns the window strategy for a budget period.
func WindowFor(p Period) (Windower, error) {
	w, ok := periodWindows[p]
	if !ok {
		return nil, fmt.Errorf("unknown budget period: %s", p)
	}
	return w, nil
}

// Contains reports whether d falls inside [start, end].
func Contains(start, end, d Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

// DaysBetween counts the calendar days in [start, end].
func DaysBetween(start, end Date) int {
	if end.Before(start.Time) {
		return 0
	}
	return int(end.Sub(start.Time)/(24*time.Hour)) + 1
}

// periodDays approximates period length in days for scaling limits over arbitrary ranges.
var periodDays = map[Period]int{
	Weekly:  7,
	Monthly: 30,
	Yearly:  365,
}

// ScaleLimit prorates a per-period limit over a range of days. A range that
// exactly matches a period window returns the limit unchanged.
func ScaleLimit(limit Money, p Period, start, end Date) Money {
	if w, err := WindowFor(p); err == nil {
		ws, we := w.Window(start)
		if ws.Equal(start.Time) && we.Equal(end.Time) {
			return limit
		}
	}
	days := DaysBetween(start, end)
	per, ok := periodDays[p]
	if !ok || days == 0 {
		return Money{}
	}
	return Money{Cents: limit.Cents * int64(days) / int64(per)}
}
