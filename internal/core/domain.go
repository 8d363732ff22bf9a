package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Fixed             ExpenseType = "fixed"
	Variable          ExpenseType = "variable"
	ControllableFixed ExpenseType = "controllable_fixed"

	Monthly Period = "monthly"
	Weekly  Period = "weekly"
	Yearly  Period = "yearly"

	FullAccess Permission = "full_access"
	ViewOnly   Permission = "view_only"

	InvitePending  InviteState = "pending"
	InviteAccepted InviteState = "accepted"
	InviteRevoked  InviteState = "revoked"

	SourceManual Source = "manual"
	SourceImport Source = "import"
	SourceBank   Source = "bank"
)

// Length limits count characters, not bytes.
const (
	MaxDescriptionLen  = 200
	MaxCategoryNameLen = 100
)

type (
	TransactionType string
	ExpenseType     string
	Period          string
	Permission      string
	InviteState     string
	Source          string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Email        string
		Name         string
		PasswordHash string
		CreatedAt    time.Time
	}

	Transaction struct {
		ID          int64
		OwnerID     int64
		CreatedBy   int64 // Attribution, kept after a collaborator is revoked
		Type        TransactionType
		Amount      Money
		CategoryID  *int64
		Description string
		Date        Date
		ExpenseType ExpenseType // Optional tag; empty means untagged
		Source      Source
		ExternalID  string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Category struct {
		ID          int64
		OwnerID     int64
		Name        string
		ExpenseType ExpenseType
		IsIncome    bool
		CreatedAt   time.Time
	}

	Budget struct {
		ID         int64
		OwnerID    int64
		CategoryID int64
		Limit      Money
		Period     Period
		CreatedAt  time.Time
	}

	// BudgetStatus is a budget with its spending computed for one period window.
	BudgetStatus struct {
		Budget
		CategoryName string
		WindowStart  Date
		WindowEnd    Date
		Spent        Money
		Remaining    Money
		PercentUsed  float64
	}

	Invite struct {
		ID         int64
		OwnerID    int64
		Email      string
		Permission Permission
		Token      string
		State      InviteState
		ExpiresAt  time.Time
		AcceptedBy *int64
		AcceptedAt *time.Time
		CreatedAt  time.Time
	}

	// SharedLedger is a ledger another user has opened to the caller.
	SharedLedger struct {
		OwnerID    int64
		OwnerEmail string
		OwnerName  string
		Permission Permission
		InviteID   int64
	}

	ConsentRecord struct {
		ID            int64
		UserID        int64
		ConsentType   string
		Granted       bool
		PolicyVersion string
		CreatedAt     time.Time
	}

	FeedbackRecord struct {
		ID        int64
		UserID    int64
		Rating    *int
		Message   string
		Page      string
		CreatedAt time.Time
	}

	AnalyticsEvent struct {
		ID         int64
		UserID     *int64
		Name       string
		Properties map[string]any
		OccurredAt time.Time
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrCategoryNameTooLong = errors.New("category name too long (max 100 characters)")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidExpenseType  = errors.New("invalid expense type")
	ErrInvalidPeriod       = errors.New("invalid budget period")
	ErrInvalidPermission   = errors.New("invalid permission level")
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrCategoryMismatch    = errors.New("category does not match transaction type")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("already exists")
	ErrInviteExpired       = errors.New("invite expired")
	ErrInviteNotPending    = errors.New("invite is not pending")
	ErrInviteEmailMismatch = errors.New("invite was sent to a different email")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrCategoryInUse       = errors.New("category is used by transactions of the other kind")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrWeakPassword        = errors.New("password must be at least 8 characters")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (e ExpenseType) Valid() bool {
	switch e {
	case Fixed, Variable, ControllableFixed:
		return true
	}
	return false
}

func (p Period) Valid() bool {
	switch p {
	case Monthly, Weekly, Yearly:
		return true
	}
	return false
}

func (p Permission) Valid() bool {
	return p == FullAccess || p == ViewOnly
}

// CanWrite reports whether the permission allows mutations.
func (p Permission) CanWrite() bool {
	return p == FullAccess
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if t.ExpenseType != "" && !t.ExpenseType.Valid() {
		return ErrInvalidExpenseType
	}
	return nil
}

// ClipDescription shortens s to MaxDescriptionLen characters.
func ClipDescription(s string) string {
	if utf8.RuneCountInString(s) <= MaxDescriptionLen {
		return s
	}
	return string([]rune(s)[:MaxDescriptionLen])
}

// MatchesCategory reports whether the category kind fits the transaction type.
func (t Transaction) MatchesCategory(c Category) bool {
	return c.IsIncome == (t.Type == Income)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(c.Name) > MaxCategoryNameLen {
		return ErrCategoryNameTooLong
	}
	if !c.ExpenseType.Valid() {
		return ErrInvalidExpenseType
	}
	return nil
}

func (b Budget) Validate() error {
	if b.CategoryID <= 0 {
		return errors.New("budget requires a category")
	}
	if err := b.Limit.Validate(); err != nil {
		return err
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

func (i Invite) Validate() error {
	if !ValidEmail(i.Email) {
		return ErrInvalidEmail
	}
	if !i.Permission.Valid() {
		return ErrInvalidPermission
	}
	return nil
}

// Usable reports whether the invite can still be accepted at now.
func (i Invite) Usable(now time.Time) error {
	if i.State != InvitePending {
		return ErrInviteNotPending
	}
	if !now.Before(i.ExpiresAt) {
		return ErrInviteExpired
	}
	return nil
}

func (f FeedbackRecord) Validate() error {
	if f.Rating != nil && (*f.Rating < 1 || *f.Rating > 5) {
		return ErrInvalidRating
	}
	if strings.TrimSpace(f.Message) == "" && f.Rating == nil {
		return errors.New("feedback needs a message or a rating")
	}
	if utf8.RuneCountInString(f.Message) > 2000 {
		return errors.New("feedback message too long (max 2000 characters)")
	}
	return nil
}

func (e AnalyticsEvent) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(e.Name) > 100 {
		return errors.New("event name too long (max 100 characters)")
	}
	return nil
}

func (c ConsentRecord) Validate() error {
	if strings.TrimSpace(c.ConsentType) == "" {
		return errors.New("empty consent type")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail is a shape check, not a deliverability check.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at < 1 || at == len(s)-1 || len(s) > 254 {
		return false
	}
	return strings.Contains(s[at+1:], ".") && !strings.ContainsAny(s, " \t\r\n")
}
