package contract

import (
	"context"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/repository/specification"

	"github.com/google/uuid"
)

type SectionRepository interface {
	Create(ctx context.Context, section *entity.Section) error
	Update(ctx context.Context, section *entity.Section) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPageId(ctx context.Context, pageId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Section, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Section, error)
}
