package entity

import (
	"time"

	"github.com/google/uuid"
)

type Section struct {
	Id        uuid.UUID
	Name      string
	PageId    uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
