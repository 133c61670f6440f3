package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// HistoryEvent announces that a history row was appended. It carries only
// the namespace and row id; consumers read the row from the history store.
type HistoryEvent struct {
	Feature   string    `json:"feature"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHistoryEvent creates an event stamped with the current time.
func NewHistoryEvent(feature string, id int64) *HistoryEvent {
	return &HistoryEvent{
		Feature:   feature,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *HistoryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// HistoryEventFromJSON decodes an event, rejecting ones without a namespace or id.
func HistoryEventFromJSON(data []byte) (*HistoryEvent, error) {
	var msg HistoryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Feature == "" || msg.ID <= 0 {
		return nil, fmt.Errorf("incomplete history event: feature=%q id=%d", msg.Feature, msg.ID)
	}
	return &msg, nil
}
