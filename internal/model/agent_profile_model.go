package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AgentProfile struct {
	UserId         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TurnCount      int            `gorm:"not null;default:0"`
	TerminalCounts datatypes.JSON `gorm:"type:jsonb"`
	ToolUsage      datatypes.JSON `gorm:"type:jsonb"`
	PlansProposed  int            `gorm:"not null;default:0"`
	BulkOperations int            `gorm:"not null;default:0"`
	LastSeenAt     time.Time
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (AgentProfile) TableName() string {
	return "agent_profiles"
}
