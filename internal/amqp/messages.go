package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"tally/internal/core"
)

// ChangeMessage is the wire form of a ledger change event. It carries ids
// only; consumers refetch what they need.
type ChangeMessage struct {
	OwnerID   int64     `json:"owner_id"`
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage wraps an event for publishing.
func NewChangeMessage(ev core.ChangeEvent) *ChangeMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ChangeMessage{
		OwnerID:   ev.OwnerID,
		Entity:    ev.Entity,
		Action:    ev.Action,
		ID:        ev.ID,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Event converts the message back into a domain event.
func (m *ChangeMessage) Event() core.ChangeEvent {
	return core.ChangeEvent{OwnerID: m.OwnerID, Entity: m.Entity, Action: m.Action, ID: m.ID, At: m.Timestamp}
}

// ChangeMessageFromJSON decodes and checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID <= 0 {
		return nil, fmt.Errorf("change message without owner")
	}
	if msg.Entity == "" || msg.Action == "" {
		return nil, fmt.Errorf("change message without entity or action")
	}
	return &msg, nil
}
