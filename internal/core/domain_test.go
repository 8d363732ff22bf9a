package core

import (
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:        Expense,
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      Money{Cents: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := func(f func(*Transaction)) Transaction {
		tx := good
		f(&tx)
		return tx
	}
	bads := []Transaction{
		mutate(func(tx *Transaction) { tx.Date = Date{} }),
		mutate(func(tx *Transaction) { tx.Description = "  " }),
		mutate(func(tx *Transaction) { tx.Description = strings.Repeat("x", 201) }),
		mutate(func(tx *Transaction) { tx.Amount = Money{} }),
		mutate(func(tx *Transaction) { tx.Type = "transfer" }),
		mutate(func(tx *Transaction) { tx.ExpenseType = "luxury" }),
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestLengthLimitsCountCharacters(t *testing.T) {
	tx := Transaction{
		Type:        Expense,
		Date:        NewDate(2025, 1, 1),
		Description: strings.Repeat("é", MaxDescriptionLen),
		Amount:      Money{Cents: 100},
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("200 accented characters should fit, got %v", err)
	}
	tx.Description += "é"
	if err := tx.Validate(); err != ErrDescriptionTooLong {
		t.Fatalf("expected ErrDescriptionTooLong, got %v", err)
	}

	c := Category{Name: strings.Repeat("é", MaxCategoryNameLen), ExpenseType: Variable}
	if err := c.Validate(); err != nil {
		t.Fatalf("100 accented characters should fit, got %v", err)
	}
	c.Name += "é"
	if err := c.Validate(); err != ErrCategoryNameTooLong {
		t.Fatalf("expected ErrCategoryNameTooLong, got %v", err)
	}
}

func TestClipDescription(t *testing.T) {
	if got := ClipDescription("Café"); got != "Café" {
		t.Fatalf("short description changed: %q", got)
	}
	got := ClipDescription(strings.Repeat("ü", MaxDescriptionLen+5))
	if got != strings.Repeat("ü", MaxDescriptionLen) {
		t.Fatalf("expected %d characters, got %d bytes", MaxDescriptionLen, len(got))
	}
}

func TestTransactionMatchesCategory(t *testing.T) {
	salary := Category{Name: "Salary", IsIncome: true, ExpenseType: Variable}
	rent := Category{Name: "Rent", ExpenseType: Fixed}

	if !(Transaction{Type: Income}).MatchesCategory(salary) {
		t.Fatal("income should match income category")
	}
	if (Transaction{Type: Income}).MatchesCategory(rent) {
		t.Fatal("income should not match expense category")
	}
	if !(Transaction{Type: Expense}).MatchesCategory(rent) {
		t.Fatal("expense should match expense category")
	}
}

func TestInviteUsable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := Invite{State: InvitePending, ExpiresAt: now.Add(time.Hour)}
	if err := inv.Usable(now); err != nil {
		t.Fatalf("expected usable, got %v", err)
	}
	inv.ExpiresAt = now
	if err := inv.Usable(now); err != ErrInviteExpired {
		t.Fatalf("expected ErrInviteExpired, got %v", err)
	}
	inv.ExpiresAt = now.Add(time.Hour)
	inv.State = InviteRevoked
	if err := inv.Usable(now); err != ErrInviteNotPending {
		t.Fatalf("expected ErrInviteNotPending, got %v", err)
	}
}

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"a@b.co":         true,
		" Mixed@Case.io": true,
		"nope":           false,
		"@b.co":          false,
		"a@b":            false,
		"a b@c.de":       false,
	}
	for in, want := range cases {
		if got := ValidEmail(in); got != want {
			t.Errorf("ValidEmail(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFeedbackValidate(t *testing.T) {
	six := 6
	three := 3
	if err := (FeedbackRecord{Rating: &six}).Validate(); err != ErrInvalidRating {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	if err := (FeedbackRecord{Rating: &three}).Validate(); err != nil {
		t.Fatalf("rating alone should be enough, got %v", err)
	}
	if err := (FeedbackRecord{}).Validate(); err == nil {
		t.Fatal("empty feedback should fail")
	}
}
