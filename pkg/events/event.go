package events

import (
	"time"

	"github.com/google/uuid"
)

// Agent event types. The NATS subject is "events.<type>".
const (
	TypeAgentTurnCompleted = "AGENT_TURN_COMPLETED"
	TypePlanExecuted       = "PLAN_EXECUTED"
	TypeBulkApplied        = "BULK_APPLIED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "PLAN_EXECUTED").
	EventType() string

	// Owner is the user the event belongs to; the relay routes on it.
	Owner() uuid.UUID

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string                 `json:"type"`
	UserId     uuid.UUID              `json:"userId"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurredAt"`
}

func New(eventType string, userId uuid.UUID, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       eventType,
		UserId:     userId,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Owner() uuid.UUID {
	return e.UserId
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Envelope is the wire form carried on the bus.
func Envelope(e Event) BaseEvent {
	return BaseEvent{
		Type:       e.EventType(),
		UserId:     e.Owner(),
		Data:       e.Payload(),
		OccurredAt: e.Timestamp(),
	}
}
