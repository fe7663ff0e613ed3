package mapper

import (
	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/model"

	"gorm.io/datatypes"
)

type NoteMapper struct{}

func NewNoteMapper() *NoteMapper {
	return &NoteMapper{}
}

func (m *NoteMapper) ToEntity(n *model.Note) *entity.Note {
	if n == nil {
		return nil
	}

	tags := make([]string, len(n.Tags))
	copy(tags, n.Tags)

	return &entity.Note{
		Id:        n.Id,
		Content:   n.Content,
		SectionId: n.SectionId,
		Tags:      tags,
		Completed: n.Completed,
		Date:      n.Date,
		CreatedAt: n.CreatedAt,
		UpdatedAt: toUpdatedAtPtr(n.UpdatedAt),
		DeletedAt: toDeletedAtPtr(n.DeletedAt),
		IsDeleted: n.DeletedAt.Valid,
	}
}

func (m *NoteMapper) ToModel(n *entity.Note) *model.Note {
	if n == nil {
		return nil
	}

	tags := datatypes.JSONSlice[string]{}
	tags = append(tags, n.Tags...)

	return &model.Note{
		Id:        n.Id,
		Content:   n.Content,
		SectionId: n.SectionId,
		Tags:      tags,
		Completed: n.Completed,
		Date:      n.Date,
		CreatedAt: n.CreatedAt,
		UpdatedAt: fromUpdatedAtPtr(n.UpdatedAt),
		DeletedAt: toGormDeletedAt(n.DeletedAt, n.IsDeleted),
	}
}

func (m *NoteMapper) ToEntities(notes []*model.Note) []*entity.Note {
	entities := make([]*entity.Note, len(notes))
	for i, n := range notes {
		entities[i] = m.ToEntity(n)
	}
	return entities
}
