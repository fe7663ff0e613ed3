package store

import (
	"context"
	"fmt"

	"ai-notetaking-agent/internal/entity"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Scope is the set of pages and sections a user owns at one point in time.
// It is derived fresh for every call and never cached.
type Scope struct {
	UserId   uuid.UUID
	Pages    []*entity.Page
	Sections []*entity.Section
}

func DeriveScope(ctx context.Context, s Store, userId uuid.UUID) (*Scope, error) {
	pages, err := s.ListPages(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	scope := &Scope{UserId: userId, Pages: pages}
	if len(pages) == 0 {
		return scope, nil
	}
	sections, err := s.ListSections(ctx, scope.PageIds())
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	scope.Sections = sections
	return scope, nil
}

func (s *Scope) PageIds() []uuid.UUID {
	return lo.Map(s.Pages, func(p *entity.Page, _ int) uuid.UUID { return p.Id })
}

func (s *Scope) SectionIds() []uuid.UUID {
	return lo.Map(s.Sections, func(sec *entity.Section, _ int) uuid.UUID { return sec.Id })
}

func (s *Scope) Page(id uuid.UUID) (*entity.Page, bool) {
	return lo.Find(s.Pages, func(p *entity.Page) bool { return p.Id == id })
}

func (s *Scope) Section(id uuid.UUID) (*entity.Section, bool) {
	return lo.Find(s.Sections, func(sec *entity.Section) bool { return sec.Id == id })
}

func (s *Scope) SectionsOf(pageId uuid.UUID) []*entity.Section {
	return lo.Filter(s.Sections, func(sec *entity.Section, _ int) bool { return sec.PageId == pageId })
}
