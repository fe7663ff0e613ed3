package mapper

import (
	"encoding/json"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type AgentMessageMapper struct{}

func NewAgentMessageMapper() *AgentMessageMapper {
	return &AgentMessageMapper{}
}

func (m *AgentMessageMapper) ToEntity(a *model.AgentMessage) *entity.AgentMessage {
	if a == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(a.Metadata) > 0 {
		// Metadata is written by this mapper only; a decode failure leaves it empty.
		_ = json.Unmarshal(a.Metadata, &metadata)
	}

	var embedding []float32
	if a.Embedding != nil {
		embedding = a.Embedding.Slice()
	}

	return &entity.AgentMessage{
		Id:        a.Id,
		SessionId: a.SessionId,
		UserId:    a.UserId,
		Role:      a.Role,
		Kind:      a.Kind,
		Content:   a.Content,
		Metadata:  metadata,
		Responded: a.Responded,
		Embedding: embedding,
		CreatedAt: a.CreatedAt,
	}
}

func (m *AgentMessageMapper) ToModel(a *entity.AgentMessage) (*model.AgentMessage, error) {
	if a == nil {
		return nil, nil
	}

	var metadata datatypes.JSON
	if len(a.Metadata) > 0 {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = datatypes.JSON(raw)
	}

	var embedding *pgvector.Vector
	if len(a.Embedding) > 0 {
		v := pgvector.NewVector(a.Embedding)
		embedding = &v
	}

	return &model.AgentMessage{
		Id:        a.Id,
		SessionId: a.SessionId,
		UserId:    a.UserId,
		Role:      a.Role,
		Kind:      a.Kind,
		Content:   a.Content,
		Metadata:  metadata,
		Responded: a.Responded,
		Embedding: embedding,
		CreatedAt: a.CreatedAt,
	}, nil
}

func (m *AgentMessageMapper) ToEntities(messages []*model.AgentMessage) []*entity.AgentMessage {
	entities := make([]*entity.AgentMessage, len(messages))
	for i, a := range messages {
		entities[i] = m.ToEntity(a)
	}
	return entities
}
