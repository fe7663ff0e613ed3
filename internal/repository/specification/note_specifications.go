package specification

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BySectionID struct {
	SectionID uuid.UUID
}

func (s BySectionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("section_id = ?", s.SectionID)
}

type BySectionIDs struct {
	SectionIDs []uuid.UUID
}

func (s BySectionIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("section_id IN ?", s.SectionIDs)
}

// HasAllTags keeps notes whose tag array contains every listed tag.
// Tags are stored lowercased, so the wanted set is lowercased too.
type HasAllTags struct {
	Tags []string
}

func (s HasAllTags) Apply(db *gorm.DB) *gorm.DB {
	lowered := make([]string, 0, len(s.Tags))
	for _, t := range s.Tags {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(t)))
	}
	wanted, _ := json.Marshal(lowered)
	return db.Where("tags @> ?::jsonb", string(wanted))
}

type HasNoTags struct {
	Empty bool
}

func (s HasNoTags) Apply(db *gorm.DB) *gorm.DB {
	if s.Empty {
		return db.Where("jsonb_array_length(tags) = 0")
	}
	return db.Where("jsonb_array_length(tags) > 0")
}

type CompletedIs struct {
	Completed bool
}

func (s CompletedIs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("completed = ?", s.Completed)
}

// ContentSearch filters notes by content substring (case insensitive).
// The query is matched literally; LIKE wildcards in it are escaped.
type ContentSearch struct {
	Query string
}

func (s ContentSearch) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(`content ILIKE ? ESCAPE '\'`, "%"+EscapeLike(s.Query)+"%")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike makes s match itself inside a LIKE pattern.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
