package entity

import (
	"time"

	"github.com/google/uuid"
)

type Note struct {
	Id        uuid.UUID
	Content   string
	SectionId uuid.UUID
	Tags      []string
	Completed bool
	Date      *time.Time
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

// HasTag reports whether the note carries tag, ignoring case.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if equalFold(t, tag) {
			return true
		}
	}
	return false
}
