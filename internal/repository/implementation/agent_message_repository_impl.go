package implementation

import (
	"context"
	"errors"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/mapper"
	"ai-notetaking-agent/internal/model"
	"ai-notetaking-agent/internal/repository/contract"
	"ai-notetaking-agent/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type AgentMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AgentMessageMapper
}

func NewAgentMessageRepository(db *gorm.DB) contract.AgentMessageRepository {
	return &AgentMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewAgentMessageMapper(),
	}
}

func (r *AgentMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *AgentMessageRepositoryImpl) Create(ctx context.Context, message *entity.AgentMessage) error {
	m, err := r.mapper.ToModel(message)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.ToEntity(m)
	return nil
}

func (r *AgentMessageRepositoryImpl) Update(ctx context.Context, message *entity.AgentMessage) error {
	m, err := r.mapper.ToModel(message)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.ToEntity(m)
	return nil
}

func (r *AgentMessageRepositoryImpl) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	v := pgvector.NewVector(embedding)
	return r.db.WithContext(ctx).
		Model(&model.AgentMessage{}).
		Where("id = ?", id).
		Update("embedding", &v).Error
}

func (r *AgentMessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AgentMessage, error) {
	var m model.AgentMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *AgentMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AgentMessage, error) {
	var models []*model.AgentMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

// SearchSimilarWithScore searches the user's past messages that already carry an embedding.
func (r *AgentMessageRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, threshold float64) ([]*contract.ScoredAgentMessage, error) {
	if limit <= 0 {
		limit = 3
	}

	type result struct {
		model.AgentMessage
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("agent_messages").
		Select("agent_messages.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("user_id = ?", userId).
		Where("embedding IS NOT NULL").
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredAgentMessage, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredAgentMessage{
			Message:    r.mapper.ToEntity(&res.AgentMessage),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
