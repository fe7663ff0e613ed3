package mapper

import (
	"encoding/json"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/model"

	"gorm.io/datatypes"
)

type AgentProfileMapper struct{}

func NewAgentProfileMapper() *AgentProfileMapper {
	return &AgentProfileMapper{}
}

func (m *AgentProfileMapper) ToEntity(p *model.AgentProfile) *entity.AgentProfile {
	if p == nil {
		return nil
	}
	terminalCounts := map[string]int{}
	toolUsage := map[string]int{}
	if len(p.TerminalCounts) > 0 {
		_ = json.Unmarshal(p.TerminalCounts, &terminalCounts)
	}
	if len(p.ToolUsage) > 0 {
		_ = json.Unmarshal(p.ToolUsage, &toolUsage)
	}
	return &entity.AgentProfile{
		UserId:         p.UserId,
		TurnCount:      p.TurnCount,
		TerminalCounts: terminalCounts,
		ToolUsage:      toolUsage,
		PlansProposed:  p.PlansProposed,
		BulkOperations: p.BulkOperations,
		LastSeenAt:     p.LastSeenAt,
	}
}

func (m *AgentProfileMapper) ToModel(p *entity.AgentProfile) (*model.AgentProfile, error) {
	if p == nil {
		return nil, nil
	}
	terminalCounts, err := json.Marshal(p.TerminalCounts)
	if err != nil {
		return nil, err
	}
	toolUsage, err := json.Marshal(p.ToolUsage)
	if err != nil {
		return nil, err
	}
	return &model.AgentProfile{
		UserId:         p.UserId,
		TurnCount:      p.TurnCount,
		TerminalCounts: datatypes.JSON(terminalCounts),
		ToolUsage:      datatypes.JSON(toolUsage),
		PlansProposed:  p.PlansProposed,
		BulkOperations: p.BulkOperations,
		LastSeenAt:     p.LastSeenAt,
	}, nil
}
