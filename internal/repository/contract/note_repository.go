package contract

import (
	"context"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/repository/specification"

	"github.com/google/uuid"
)

// NoteCounts is an aggregate row for one section.
type NoteCounts struct {
	SectionId uuid.UUID
	Total     int64
	Completed int64
}

type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	Update(ctx context.Context, note *entity.Note) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByIds returns the number of rows actually removed.
	DeleteByIds(ctx context.Context, ids []uuid.UUID) (int64, error)
	DeleteBySectionIds(ctx context.Context, sectionIds []uuid.UUID) error
	// UpdateColumnsByIds applies the same column values to every id and returns rows affected.
	UpdateColumnsByIds(ctx context.Context, ids []uuid.UUID, columns map[string]interface{}) (int64, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Note, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Note, error)
	CountBySection(ctx context.Context, sectionIds []uuid.UUID) ([]NoteCounts, error)
	DistinctTags(ctx context.Context, sectionIds []uuid.UUID) ([]string, error)
}
