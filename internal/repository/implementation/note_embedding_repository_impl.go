package implementation

import (
	"context"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/mapper"
	"ai-notetaking-agent/internal/model"
	"ai-notetaking-agent/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type NoteEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.NoteEmbeddingMapper
}

func NewNoteEmbeddingRepository(db *gorm.DB) contract.NoteEmbeddingRepository {
	return &NoteEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewNoteEmbeddingMapper(),
	}
}

func (r *NoteEmbeddingRepositoryImpl) DeleteByNoteId(ctx context.Context, noteId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("note_id = ?", noteId).Delete(&model.NoteEmbedding{}).Error
}

// SearchSimilarWithScore returns embeddings with similarity scores, filtered by threshold
func (r *NoteEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sectionIds []uuid.UUID, threshold float64) ([]*contract.ScoredNoteEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}
	if len(sectionIds) == 0 {
		return nil, nil
	}

	// Cosine distance in pgvector is 1 - cosine_similarity
	type result struct {
		model.NoteEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("note_embeddings").
		Select("note_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Joins("JOIN notes ON notes.id = note_embeddings.note_id").
		Where("notes.section_id IN ?", sectionIds).
		Where("note_embeddings.deleted_at IS NULL").
		Where("notes.deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredNoteEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredNoteEmbedding{
			Embedding:  r.mapper.ToEntity(&res.NoteEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *NoteEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.NoteEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := make([]*model.NoteEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.ToModel(e)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}
