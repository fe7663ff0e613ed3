package mapper

import (
	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/model"
)

type PageMapper struct{}

func NewPageMapper() *PageMapper {
	return &PageMapper{}
}

func (m *PageMapper) ToEntity(p *model.Page) *entity.Page {
	if p == nil {
		return nil
	}
	return &entity.Page{
		Id:        p.Id,
		Name:      p.Name,
		UserId:    p.UserId,
		CreatedAt: p.CreatedAt,
		UpdatedAt: toUpdatedAtPtr(p.UpdatedAt),
		DeletedAt: toDeletedAtPtr(p.DeletedAt),
		IsDeleted: p.DeletedAt.Valid,
	}
}

func (m *PageMapper) ToModel(p *entity.Page) *model.Page {
	if p == nil {
		return nil
	}
	return &model.Page{
		Id:        p.Id,
		Name:      p.Name,
		UserId:    p.UserId,
		CreatedAt: p.CreatedAt,
		UpdatedAt: fromUpdatedAtPtr(p.UpdatedAt),
		DeletedAt: toGormDeletedAt(p.DeletedAt, p.IsDeleted),
	}
}

func (m *PageMapper) ToEntities(pages []*model.Page) []*entity.Page {
	entities := make([]*entity.Page, len(pages))
	for i, p := range pages {
		entities[i] = m.ToEntity(p)
	}
	return entities
}
