package mapper

import (
	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/model"

	"github.com/pgvector/pgvector-go"
)

type NoteEmbeddingMapper struct{}

func NewNoteEmbeddingMapper() *NoteEmbeddingMapper {
	return &NoteEmbeddingMapper{}
}

func (m *NoteEmbeddingMapper) ToEntity(e *model.NoteEmbedding) *entity.NoteEmbedding {
	if e == nil {
		return nil
	}
	return &entity.NoteEmbedding{
		Id:             e.Id,
		Document:       e.Document,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		NoteId:         e.NoteId,
		ChunkIndex:     e.ChunkIndex,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      toUpdatedAtPtr(e.UpdatedAt),
		DeletedAt:      toDeletedAtPtr(e.DeletedAt),
		IsDeleted:      e.DeletedAt.Valid,
	}
}

func (m *NoteEmbeddingMapper) ToModel(e *entity.NoteEmbedding) *model.NoteEmbedding {
	if e == nil {
		return nil
	}
	return &model.NoteEmbedding{
		Id:             e.Id,
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		NoteId:         e.NoteId,
		ChunkIndex:     e.ChunkIndex,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      fromUpdatedAtPtr(e.UpdatedAt),
		DeletedAt:      toGormDeletedAt(e.DeletedAt, e.IsDeleted),
	}
}
