package contract

import (
	"context"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/repository/specification"

	"github.com/google/uuid"
)

type ScoredAgentMessage struct {
	Message    *entity.AgentMessage
	Similarity float64
}

type AgentMessageRepository interface {
	Create(ctx context.Context, message *entity.AgentMessage) error
	Update(ctx context.Context, message *entity.AgentMessage) error
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AgentMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AgentMessage, error)
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, threshold float64) ([]*ScoredAgentMessage, error)
}
