package entity

import (
	"time"

	"github.com/google/uuid"
)

// Page is the top level of a user's note hierarchy.
type Page struct {
	Id        uuid.UUID
	Name      string
	UserId    uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
