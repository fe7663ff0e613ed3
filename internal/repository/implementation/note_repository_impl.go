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

type NoteRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.NoteMapper
}

func NewNoteRepository(db *gorm.DB) contract.NoteRepository {
	return &NoteRepositoryImpl{
		db:     db,
		mapper: mapper.NewNoteMapper(),
	}
}

func (r *NoteRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *NoteRepositoryImpl) Create(ctx context.Context, note *entity.Note) error {
	m := r.mapper.ToModel(note)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*note = *r.mapper.ToEntity(m)
	return nil
}

func (r *NoteRepositoryImpl) Update(ctx context.Context, note *entity.Note) error {
	m := r.mapper.ToModel(note)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*note = *r.mapper.ToEntity(m)
	return nil
}

func (r *NoteRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Note{}, id).Error
}

func (r *NoteRepositoryImpl) DeleteByIds(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Note{})
	return res.RowsAffected, res.Error
}

func (r *NoteRepositoryImpl) DeleteBySectionIds(ctx context.Context, sectionIds []uuid.UUID) error {
	if len(sectionIds) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("section_id IN ?", sectionIds).Delete(&model.Note{}).Error
}

func (r *NoteRepositoryImpl) UpdateColumnsByIds(ctx context.Context, ids []uuid.UUID, columns map[string]interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Note{}).Where("id IN ?", ids).Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *NoteRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Note, error) {
	var m model.Note
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *NoteRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Note, error) {
	var models []*model.Note
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *NoteRepositoryImpl) CountBySection(ctx context.Context, sectionIds []uuid.UUID) ([]contract.NoteCounts, error) {
	if len(sectionIds) == 0 {
		return nil, nil
	}
	var rows []contract.NoteCounts
	err := r.db.WithContext(ctx).
		Model(&model.Note{}).
		Select("section_id, COUNT(*) AS total, COUNT(*) FILTER (WHERE completed) AS completed").
		Where("section_id IN ?", sectionIds).
		Group("section_id").
		Scan(&rows).Error
	return rows, err
}

func (r *NoteRepositoryImpl) DistinctTags(ctx context.Context, sectionIds []uuid.UUID) ([]string, error) {
	if len(sectionIds) == 0 {
		return nil, nil
	}
	var tags []string
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT jsonb_array_elements_text(tags) AS tag
			FROM notes
			WHERE section_id IN ? AND deleted_at IS NULL
			ORDER BY tag`, sectionIds).
		Scan(&tags).Error
	return tags, err
}
