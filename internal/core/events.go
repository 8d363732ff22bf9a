package core

import "time"

// Entities and actions carried by change events.
const (
	EntityTransaction = "transaction"
	EntityCategory    = "category"
	EntityBudget      = "budget"
	EntityInvite      = "invite"
	EntityBankItem    = "bank_item"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionBulk    = "bulk"
)

// ChangeEvent tells subscribers of a ledger that something changed.
// It carries no row data; subscribers refetch.
type ChangeEvent struct {
	OwnerID int64     `json:"owner_id"`
	Entity  string    `json:"entity"`
	Action  string    `json:"action"`
	ID      int64     `json:"id,omitempty"`
	At      time.Time `json:"at"`
}

// NewChangeEvent stamps an event with the current time.
func NewChangeEvent(ownerID int64, entity, action string, id int64) ChangeEvent {
	return ChangeEvent{OwnerID: ownerID, Entity: entity, Action: action, ID: id, At: time.Now().UTC()}
}

const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is one queued outbound email.
type Notification struct {
	ID          int64
	Recipient   string
	Subject     string
	Body        string
	Status      string
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// BankItem is a linked bank connection and its sync cursor.
type BankItem struct {
	ID              int64
	OwnerID         int64
	ItemID          string
	AccessToken     string
	InstitutionName string
	Cursor          string
	CreatedAt       time.Time
}
