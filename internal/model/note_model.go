package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Note struct {
	Id        uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Content   string                      `gorm:"type:text;not null"`
	SectionId uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Tags      datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'"`
	Completed bool                        `gorm:"not null;default:false;index"`
	Date      *time.Time                  `gorm:"type:date"`
	CreatedAt time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt              `gorm:"index"`
}

func (Note) TableName() string {
	return "notes"
}
