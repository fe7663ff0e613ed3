package contract

import (
	"context"

	"ai-notetaking-agent/internal/entity"

	"github.com/google/uuid"
)

type AgentProfileRepository interface {
	FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.AgentProfile, error)
	Save(ctx context.Context, profile *entity.AgentProfile) error
}
