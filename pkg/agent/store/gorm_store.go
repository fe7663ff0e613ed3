package store

import (
	"context"
	"fmt"
	"strings"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/repository/contract"
	"ai-notetaking-agent/internal/repository/specification"
	"ai-notetaking-agent/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/datatypes"
)

// GormStore implements Store on top of the repository unit of work.
type GormStore struct {
	uowFactory unitofwork.RepositoryFactory
}

var _ Store = (*GormStore)(nil)

func NewGormStore(uowFactory unitofwork.RepositoryFactory) *GormStore {
	return &GormStore{uowFactory: uowFactory}
}

func (s *GormStore) ListPages(ctx context.Context, userId uuid.UUID) ([]*entity.Page, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.PageRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at"},
	)
}

func (s *GormStore) FindPageByName(ctx context.Context, userId uuid.UUID, name string) (*entity.Page, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.PageRepository().FindOne(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.ByNameInsensitive{Name: name},
		specification.NewestFirst{},
	)
}

func (s *GormStore) CreatePage(ctx context.Context, page *entity.Page) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.PageRepository().Create(ctx, page)
}

func (s *GormStore) DeletePage(ctx context.Context, pageId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	sections, err := uow.SectionRepository().FindAll(ctx, specification.ByPageID{PageID: pageId})
	if err != nil {
		return err
	}
	sectionIds := lo.Map(sections, func(sec *entity.Section, _ int) uuid.UUID { return sec.Id })
	if err := uow.NoteRepository().DeleteBySectionIds(ctx, sectionIds); err != nil {
		return fmt.Errorf("delete notes: %w", err)
	}
	if err := uow.SectionRepository().DeleteByPageId(ctx, pageId); err != nil {
		return fmt.Errorf("delete sections: %w", err)
	}
	if err := uow.PageRepository().Delete(ctx, pageId); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return uow.Commit()
}

func (s *GormStore) ListSections(ctx context.Context, pageIds []uuid.UUID) ([]*entity.Section, error) {
	if len(pageIds) == 0 {
		return nil, nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.SectionRepository().FindAll(ctx,
		specification.ByPageIDs{PageIDs: pageIds},
		specification.OrderBy{Field: "created_at"},
	)
}

func (s *GormStore) FindSectionByName(ctx context.Context, pageIds []uuid.UUID, name string) (*entity.Section, error) {
	if len(pageIds) == 0 {
		return nil, nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.SectionRepository().FindOne(ctx,
		specification.ByPageIDs{PageIDs: pageIds},
		specification.ByNameInsensitive{Name: name},
		specification.NewestFirst{},
	)
}

func (s *GormStore) CreateSection(ctx context.Context, section *entity.Section) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.SectionRepository().Create(ctx, section)
}

func (s *GormStore) DeleteSection(ctx context.Context, sectionId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.NoteRepository().DeleteBySectionIds(ctx, []uuid.UUID{sectionId}); err != nil {
		return fmt.Errorf("delete notes: %w", err)
	}
	if err := uow.SectionRepository().Delete(ctx, sectionId); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return uow.Commit()
}

func (s *GormStore) FindNotes(ctx context.Context, q NoteQuery) ([]*entity.Note, error) {
	if len(q.SectionIds) == 0 {
		return nil, nil
	}
	specs := []specification.Specification{
		specification.BySectionIDs{SectionIDs: q.SectionIds},
	}
	if len(q.Ids) > 0 {
		specs = append(specs, specification.ByIDs{IDs: q.Ids})
	}
	if q.SectionId != nil {
		specs = append(specs, specification.BySectionID{SectionID: *q.SectionId})
	}
	if len(q.Tags) > 0 {
		specs = append(specs, specification.HasAllTags{Tags: q.Tags})
	}
	if q.Completed != nil {
		specs = append(specs, specification.CompletedIs{Completed: *q.Completed})
	}
	if strings.TrimSpace(q.Search) != "" {
		specs = append(specs, specification.ContentSearch{Query: strings.TrimSpace(q.Search)})
	}
	if q.HasNoTags {
		specs = append(specs, specification.HasNoTags{Empty: true})
	}
	specs = append(specs, specification.NewestFirst{})
	if q.Limit > 0 {
		specs = append(specs, specification.Pagination{Limit: q.Limit})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.NoteRepository().FindAll(ctx, specs...)
}

func (s *GormStore) CreateNote(ctx context.Context, note *entity.Note) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.NoteRepository().Create(ctx, note)
}

func (s *GormStore) UpdateNote(ctx context.Context, note *entity.Note) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.NoteRepository().Update(ctx, note)
}

func (s *GormStore) UpdateNotes(ctx context.Context, ids []uuid.UUID, changes NoteChanges) (int64, error) {
	if changes.IsEmpty() {
		return 0, nil
	}
	columns := map[string]interface{}{}
	if changes.Completed != nil {
		columns["completed"] = *changes.Completed
	}
	if changes.SetTags {
		tags := changes.Tags
		if tags == nil {
			tags = []string{}
		}
		columns["tags"] = datatypes.JSONSlice[string](tags)
	}
	if changes.SectionId != nil {
		columns["section_id"] = *changes.SectionId
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.NoteRepository().UpdateColumnsByIds(ctx, ids, columns)
}

func (s *GormStore) DeleteNotes(ctx context.Context, ids []uuid.UUID) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.NoteRepository().DeleteByIds(ctx, ids)
}

func (s *GormStore) CountNotes(ctx context.Context, sectionIds []uuid.UUID) ([]SectionCount, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.NoteRepository().CountBySection(ctx, sectionIds)
	if err != nil {
		return nil, err
	}
	counts := make([]SectionCount, len(rows))
	for i, r := range rows {
		counts[i] = SectionCount{SectionId: r.SectionId, Total: r.Total, Completed: r.Completed}
	}
	return counts, nil
}

func (s *GormStore) Tags(ctx context.Context, sectionIds []uuid.UUID) ([]string, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.NoteRepository().DistinctTags(ctx, sectionIds)
}

// SearchNotes ranks chunk embeddings and folds them back to notes, best chunk per note.
func (s *GormStore) SearchNotes(ctx context.Context, sectionIds []uuid.UUID, vector []float32, limit int, threshold float64) ([]ScoredNote, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.NoteEmbeddingRepository().SearchSimilarWithScore(ctx, vector, limit*3, sectionIds, threshold)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, nil
	}

	best := map[uuid.UUID]float64{}
	var order []uuid.UUID
	for _, se := range scored {
		id := se.Embedding.NoteId
		if _, seen := best[id]; !seen {
			order = append(order, id)
			best[id] = se.Similarity
		}
	}
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	notes, err := uow.NoteRepository().FindAll(ctx,
		specification.ByIDs{IDs: order},
		specification.BySectionIDs{SectionIDs: sectionIds},
	)
	if err != nil {
		return nil, err
	}
	byId := lo.KeyBy(notes, func(n *entity.Note) uuid.UUID { return n.Id })

	result := make([]ScoredNote, 0, len(order))
	for _, id := range order {
		if n, ok := byId[id]; ok {
			result = append(result, ScoredNote{Note: n, Similarity: best[id]})
		}
	}
	return result, nil
}

func (s *GormStore) SearchMessages(ctx context.Context, userId uuid.UUID, vector []float32, limit int, threshold float64) ([]ScoredMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.AgentMessageRepository().SearchSimilarWithScore(ctx, vector, limit, userId, threshold)
	if err != nil {
		return nil, err
	}
	return lo.Map(scored, func(m *contract.ScoredAgentMessage, _ int) ScoredMessage {
		return ScoredMessage{Message: m.Message, Similarity: m.Similarity}
	}), nil
}
