package implementation

import (
	"context"
	"errors"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/mapper"
	"ai-notetaking-agent/internal/model"
	"ai-notetaking-agent/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AgentProfileRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AgentProfileMapper
}

func NewAgentProfileRepository(db *gorm.DB) contract.AgentProfileRepository {
	return &AgentProfileRepositoryImpl{
		db:     db,
		mapper: mapper.NewAgentProfileMapper(),
	}
}

func (r *AgentProfileRepositoryImpl) FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.AgentProfile, error) {
	var m model.AgentProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

// Save upserts the profile row keyed by user id.
func (r *AgentProfileRepositoryImpl) Save(ctx context.Context, profile *entity.AgentProfile) error {
	m, err := r.mapper.ToModel(profile)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(m).Error
}
