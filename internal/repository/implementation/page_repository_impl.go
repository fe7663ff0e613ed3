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
	"gorm.io/gorm"
)

type PageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PageMapper
}

func NewPageRepository(db *gorm.DB) contract.PageRepository {
	return &PageRepositoryImpl{
		db:     db,
		mapper: mapper.NewPageMapper(),
	}
}

func (r *PageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PageRepositoryImpl) Create(ctx context.Context, page *entity.Page) error {
	m := r.mapper.ToModel(page)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*page = *r.mapper.ToEntity(m)
	return nil
}

func (r *PageRepositoryImpl) Update(ctx context.Context, page *entity.Page) error {
	m := r.mapper.ToModel(page)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*page = *r.mapper.ToEntity(m)
	return nil
}

func (r *PageRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Page{}, id).Error
}

func (r *PageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Page, error) {
	var m model.Page
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *PageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Page, error) {
	var models []*model.Page
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *PageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Page{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
