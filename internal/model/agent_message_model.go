package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type AgentMessage struct {
	Id        uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID        `gorm:"type:uuid;not null;index"`
	UserId    uuid.UUID        `gorm:"type:uuid;not null;index"`
	Role      string           `gorm:"type:varchar(20);not null"`
	Kind      string           `gorm:"type:varchar(40);not null"`
	Content   string           `gorm:"type:text;not null"`
	Metadata  datatypes.JSON   `gorm:"type:jsonb"`
	Responded bool             `gorm:"not null;default:false"`
	Embedding *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time        `gorm:"autoCreateTime;index"`
}

func (AgentMessage) TableName() string {
	return "agent_messages"
}
