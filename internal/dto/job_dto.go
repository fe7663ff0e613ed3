package dto

import (
	"time"

	"github.com/google/uuid"
)

const (
	EmbedKindNote    = "note"
	EmbedKindMessage = "agent_message"
)

type PublishEmbedMessage struct {
	Kind   string    `json:"kind"`
	Id     uuid.UUID `json:"id"`
	UserId uuid.UUID `json:"user_id"`
}

type ProfileObservationMessage struct {
	UserId       uuid.UUID `json:"user_id"`
	Terminal     string    `json:"terminal"`
	ToolsUsed    []string  `json:"tools_used"`
	PlanProposed bool      `json:"plan_proposed"`
	BulkCalls    int       `json:"bulk_calls"`
	ObservedAt   time.Time `json:"observed_at"`
}
