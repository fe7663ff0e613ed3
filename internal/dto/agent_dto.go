package dto

import (
	"time"

	"ai-notetaking-agent/pkg/agent/loop"
	"ai-notetaking-agent/pkg/agent/plan"

	"github.com/google/uuid"
)

type SendAgentMessageRequest struct {
	SessionId *uuid.UUID `json:"session_id"`
	Message   string     `json:"message" validate:"required,max=4000"`
}

type AgentMessageResponse struct {
	Id        uuid.UUID              `json:"id"`
	Role      string                 `json:"role"`
	Kind      string                 `json:"kind"`
	Content   string                 `json:"content"`
	Responded bool                   `json:"responded"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type AgentTurnResponse struct {
	SessionId  uuid.UUID             `json:"session_id"`
	Terminal   loop.Terminal         `json:"terminal"`
	ToolsUsed  []string              `json:"tools_used"`
	Iterations int                   `json:"iterations"`
	Sent       *AgentMessageResponse `json:"sent"`
	Reply      *AgentMessageResponse `json:"reply"`
	PlanState  *PlanStateResponse    `json:"plan_state,omitempty"`
}

type PlanStateResponse struct {
	SessionId uuid.UUID     `json:"session_id"`
	State     plan.StateTag `json:"state"`
	Plan      *plan.Plan    `json:"plan,omitempty"`
	Cursor    int           `json:"cursor"`
}

type PlanExecutionResponse struct {
	SessionId uuid.UUID             `json:"session_id"`
	State     plan.StateTag         `json:"state"`
	Report    *plan.Report          `json:"report"`
	Summary   string                `json:"summary"`
	Reply     *AgentMessageResponse `json:"reply"`
}

type AgentHistoryResponse struct {
	SessionId uuid.UUID               `json:"session_id"`
	Messages  []*AgentMessageResponse `json:"messages"`
}
