package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgentProfileObserve(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	p := &AgentProfile{}

	p.Observe("response", []string{"get_pages", "create_note"}, false, 0, t0)
	p.Observe("plan_proposal", []string{"get_pages", "propose_plan"}, true, 0, t0.Add(time.Minute))
	p.Observe("confirmation", []string{"bulk_delete_notes"}, false, 1, t0.Add(-time.Hour))

	assert.Equal(t, 3, p.TurnCount)
	assert.Equal(t, map[string]int{"response": 1, "plan_proposal": 1, "confirmation": 1}, p.TerminalCounts)
	assert.Equal(t, 2, p.ToolUsage["get_pages"])
	assert.Equal(t, 1, p.PlansProposed)
	assert.Equal(t, 1, p.BulkOperations)
	// an older observation never moves LastSeenAt back
	assert.Equal(t, t0.Add(time.Minute), p.LastSeenAt)
}
