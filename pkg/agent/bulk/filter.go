package bulk

import (
	"strings"

	"ai-notetaking-agent/pkg/agent/store"

	"github.com/google/uuid"
)

// Filter selects notes for a bulk mutation or deletion.
type Filter struct {
	Tags      []string    `json:"tags,omitempty"`
	Completed *bool       `json:"completed,omitempty"`
	SectionId *uuid.UUID  `json:"sectionId,omitempty"`
	NoteIds   []uuid.UUID `json:"noteIds,omitempty"`
	Search    string      `json:"search,omitempty"`
	HasNoTags bool        `json:"hasNoTags,omitempty"`
}

// IsEmpty reports whether the filter has no discriminating field.
// Empty lists, blank strings and a false hasNoTags do not discriminate.
func (f Filter) IsEmpty() bool {
	return len(store.NormalizeTags(f.Tags)) == 0 &&
		f.Completed == nil &&
		(f.SectionId == nil || *f.SectionId == uuid.Nil) &&
		len(f.NoteIds) == 0 &&
		strings.TrimSpace(f.Search) == "" &&
		!f.HasNoTags
}

func (f Filter) toQuery(sectionIds []uuid.UUID) store.NoteQuery {
	q := store.NoteQuery{
		SectionIds: sectionIds,
		Ids:        f.NoteIds,
		Tags:       store.NormalizeTags(f.Tags),
		Completed:  f.Completed,
		Search:     strings.TrimSpace(f.Search),
		HasNoTags:  f.HasNoTags,
	}
	if f.SectionId != nil && *f.SectionId != uuid.Nil {
		q.SectionId = f.SectionId
	}
	return q
}
