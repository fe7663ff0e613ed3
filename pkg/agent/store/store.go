// Package store is the note store contract the agent core runs against.
// Every query that touches sections or notes takes the caller's scope
// explicitly; nothing here trusts an id that was not derived from the owner.
package store

import (
	"context"
	"strings"
	"time"

	"ai-notetaking-agent/internal/entity"

	"github.com/google/uuid"
)

// NoteQuery selects notes inside SectionIds. Zero-valued fields do not filter.
type NoteQuery struct {
	SectionIds []uuid.UUID // authorized scope, required
	Ids        []uuid.UUID
	SectionId  *uuid.UUID
	Tags       []string // note must carry all of them
	Completed  *bool
	Search     string
	HasNoTags  bool
	Limit      int
}

// NoteChanges is a column-level patch applied to many notes at once.
type NoteChanges struct {
	Completed *bool
	Tags      []string
	SetTags   bool
	SectionId *uuid.UUID
}

func (c NoteChanges) IsEmpty() bool {
	return c.Completed == nil && !c.SetTags && c.SectionId == nil
}

type SectionCount struct {
	SectionId uuid.UUID
	Total     int64
	Completed int64
}

type ScoredNote struct {
	Note       *entity.Note
	Similarity float64
}

type ScoredMessage struct {
	Message    *entity.AgentMessage
	Similarity float64
}

type Store interface {
	// ListPages returns the user's pages oldest first.
	ListPages(ctx context.Context, userId uuid.UUID) ([]*entity.Page, error)
	// FindPageByName matches case-insensitively; the most recently created page wins.
	// Returns (nil, nil) when nothing matches.
	FindPageByName(ctx context.Context, userId uuid.UUID, name string) (*entity.Page, error)
	CreatePage(ctx context.Context, page *entity.Page) error
	// DeletePage removes the page with its sections and notes.
	DeletePage(ctx context.Context, pageId uuid.UUID) error

	ListSections(ctx context.Context, pageIds []uuid.UUID) ([]*entity.Section, error)
	FindSectionByName(ctx context.Context, pageIds []uuid.UUID, name string) (*entity.Section, error)
	CreateSection(ctx context.Context, section *entity.Section) error
	DeleteSection(ctx context.Context, sectionId uuid.UUID) error

	FindNotes(ctx context.Context, q NoteQuery) ([]*entity.Note, error)
	CreateNote(ctx context.Context, note *entity.Note) error
	UpdateNote(ctx context.Context, note *entity.Note) error
	UpdateNotes(ctx context.Context, ids []uuid.UUID, changes NoteChanges) (int64, error)
	DeleteNotes(ctx context.Context, ids []uuid.UUID) (int64, error)
	CountNotes(ctx context.Context, sectionIds []uuid.UUID) ([]SectionCount, error)
	Tags(ctx context.Context, sectionIds []uuid.UUID) ([]string, error)

	SearchNotes(ctx context.Context, sectionIds []uuid.UUID, vector []float32, limit int, threshold float64) ([]ScoredNote, error)
	SearchMessages(ctx context.Context, userId uuid.UUID, vector []float32, limit int, threshold float64) ([]ScoredMessage, error)
}

// ParseDate accepts YYYY-MM-DD or RFC3339.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NormalizeTags lowercases, trims and de-duplicates tags, dropping blanks.
// Tags are always persisted in this form.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
