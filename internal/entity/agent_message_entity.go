package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AgentMessage is one persisted turn of an agent conversation.
// Embedding stays nil until the background consumer has processed it.
type AgentMessage struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	UserId    uuid.UUID
	Role      string
	Kind      string
	Content   string
	Metadata  map[string]interface{}
	Responded bool
	Embedding []float32
	CreatedAt time.Time
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
