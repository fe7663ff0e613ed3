package entity

import (
	"time"

	"github.com/google/uuid"
)

// AgentProfile aggregates how a user works with the agent.
type AgentProfile struct {
	UserId         uuid.UUID
	TurnCount      int
	TerminalCounts map[string]int
	ToolUsage      map[string]int
	PlansProposed  int
	BulkOperations int
	LastSeenAt     time.Time
}

// Observe folds one finished turn into the profile.
func (p *AgentProfile) Observe(terminal string, toolsUsed []string, planProposed bool, bulkCalls int, at time.Time) {
	if p.TerminalCounts == nil {
		p.TerminalCounts = map[string]int{}
	}
	if p.ToolUsage == nil {
		p.ToolUsage = map[string]int{}
	}

	p.TurnCount++
	if terminal != "" {
		p.TerminalCounts[terminal]++
	}
	for _, name := range toolsUsed {
		p.ToolUsage[name]++
	}
	if planProposed {
		p.PlansProposed++
	}
	p.BulkOperations += bulkCalls
	if at.After(p.LastSeenAt) {
		p.LastSeenAt = at
	}
}
