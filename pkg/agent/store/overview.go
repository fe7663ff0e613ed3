package store

import (
	"context"

	"ai-notetaking-agent/internal/entity"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type SectionOverview struct {
	Section   *entity.Section
	Total     int64
	Completed int64
}

type PageOverview struct {
	Page     *entity.Page
	Sections []SectionOverview
}

// Overview is the structural snapshot of a user's database.
type Overview struct {
	Pages          []PageOverview
	Tags           []string
	TotalNotes     int64
	CompletedNotes int64
}

func (o *Overview) SectionCount() int {
	return lo.SumBy(o.Pages, func(p PageOverview) int { return len(p.Sections) })
}

// SectionName looks a section up by id, returning "" when unknown.
func (o *Overview) SectionName(id uuid.UUID) string {
	for _, p := range o.Pages {
		for _, s := range p.Sections {
			if s.Section.Id == id {
				return s.Section.Name
			}
		}
	}
	return ""
}

func BuildOverview(ctx context.Context, s Store, userId uuid.UUID) (*Overview, error) {
	scope, err := DeriveScope(ctx, s, userId)
	if err != nil {
		return nil, err
	}

	ov := &Overview{}
	sectionIds := scope.SectionIds()
	if len(sectionIds) > 0 {
		counts, err := s.CountNotes(ctx, sectionIds)
		if err != nil {
			return nil, err
		}
		byId := lo.KeyBy(counts, func(c SectionCount) uuid.UUID { return c.SectionId })

		tags, err := s.Tags(ctx, sectionIds)
		if err != nil {
			return nil, err
		}
		ov.Tags = tags

		for _, page := range scope.Pages {
			po := PageOverview{Page: page}
			for _, sec := range scope.SectionsOf(page.Id) {
				c := byId[sec.Id]
				po.Sections = append(po.Sections, SectionOverview{Section: sec, Total: c.Total, Completed: c.Completed})
				ov.TotalNotes += c.Total
				ov.CompletedNotes += c.Completed
			}
			ov.Pages = append(ov.Pages, po)
		}
		return ov, nil
	}

	for _, page := range scope.Pages {
		ov.Pages = append(ov.Pages, PageOverview{Page: page})
	}
	return ov, nil
}
