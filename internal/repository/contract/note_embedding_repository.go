package contract

import (
	"context"

	"ai-notetaking-agent/internal/entity"

	"github.com/google/uuid"
)

// ScoredNoteEmbedding wraps NoteEmbedding with its similarity score
type ScoredNoteEmbedding struct {
	Embedding  *entity.NoteEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type NoteEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*entity.NoteEmbedding) error
	DeleteByNoteId(ctx context.Context, noteId uuid.UUID) error
	// SearchSimilarWithScore only considers notes living in sectionIds.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sectionIds []uuid.UUID, threshold float64) ([]*ScoredNoteEmbedding, error)
}
