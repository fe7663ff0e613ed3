package mapper

import (
	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/model"
)

type SectionMapper struct{}

func NewSectionMapper() *SectionMapper {
	return &SectionMapper{}
}

func (m *SectionMapper) ToEntity(s *model.Section) *entity.Section {
	if s == nil {
		return nil
	}
	return &entity.Section{
		Id:        s.Id,
		Name:      s.Name,
		PageId:    s.PageId,
		CreatedAt: s.CreatedAt,
		UpdatedAt: toUpdatedAtPtr(s.UpdatedAt),
		DeletedAt: toDeletedAtPtr(s.DeletedAt),
		IsDeleted: s.DeletedAt.Valid,
	}
}

func (m *SectionMapper) ToModel(s *entity.Section) *model.Section {
	if s == nil {
		return nil
	}
	return &model.Section{
		Id:        s.Id,
		Name:      s.Name,
		PageId:    s.PageId,
		CreatedAt: s.CreatedAt,
		UpdatedAt: fromUpdatedAtPtr(s.UpdatedAt),
		DeletedAt: toGormDeletedAt(s.DeletedAt, s.IsDeleted),
	}
}

func (m *SectionMapper) ToEntities(sections []*model.Section) []*entity.Section {
	entities := make([]*entity.Section, len(sections))
	for i, s := range sections {
		entities[i] = m.ToEntity(s)
	}
	return entities
}
