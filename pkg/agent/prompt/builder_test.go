package prompt

import (
	"strings"
	"testing"
	"time"

	"ai-notetaking-agent/pkg/agent/plan"

	"github.com/stretchr/testify/assert"
)

func TestBuildSections(t *testing.T) {
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		params      Params
		contains    []string
		notContains []string
	}{
		{
			name:        "no context",
			params:      Params{Now: now},
			contains:    []string{"<personality>", "<rules>", "<today>Monday, 2024-05-06</today>"},
			notContains: []string{"<context>", "<plan_under_review>"},
		},
		{
			name:     "with retrieval context",
			params:   Params{Now: now, RAGContext: "=== DATABASE OVERVIEW ===\nPages: 1"},
			contains: []string{"<context>\n=== DATABASE OVERVIEW ===\nPages: 1\n</context>"},
		},
		{
			name: "plan mode",
			params: Params{Now: now, PlanMode: &PlanMode{Cursor: 1, Plan: &plan.Plan{
				Summary: "Launch setup",
				Groups: []plan.Group{
					{Title: "Create page", Status: plan.StatusApproved, Actions: []plan.Action{{Type: plan.ActionCreatePage, Name: "Launch"}}},
					{Title: "Sections", Status: plan.StatusPending, Actions: []plan.Action{{Type: plan.ActionCreateSection, Name: "Goals"}}},
				},
			}}},
			contains: []string{
				"Summary: Launch setup",
				"  Step 0 [approved] Create page (1 action(s))",
				"> Step 1 [pending] Sections (1 action(s))",
				`create section "Goals" in (the one created last)`,
				"revise_plan_step",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.params)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, got, unwanted)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, strings.Repeat("é", 3)+"...", truncate(strings.Repeat("é", 5), 3))
}
