package plan

import (
	"testing"

	"ai-notetaking-agent/pkg/agent/bulk"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func launchPlan() *Plan {
	return &Plan{
		Summary: "Set up the Launch page",
		Groups: []Group{
			{Title: "Create page", Actions: []Action{{Type: ActionCreatePage, Name: "Launch"}}},
			{Title: "Add sections", Actions: []Action{
				{Type: ActionCreateSection, Name: "Goals", PageName: "Launch"},
				{Type: ActionCreateSection, Name: "Tasks", PageName: "Launch"},
			}},
		},
	}
}

func TestValidateRejectsFlatPlan(t *testing.T) {
	flat := &Plan{
		Summary: "Set up the Launch page",
		Groups: []Group{{Title: "Everything", Actions: []Action{
			{Type: ActionCreatePage, Name: "Launch"},
			{Type: ActionCreateSection, Name: "Goals", PageName: "Launch"},
			{Type: ActionCreateSection, Name: "Tasks", PageName: "Launch"},
		}}},
	}
	assert.ErrorIs(t, flat.Validate(), ErrInvalidPlan)

	implicitParent := &Plan{Groups: []Group{{Title: "x", Actions: []Action{
		{Type: ActionCreatePage, Name: "Launch"},
		{Type: ActionCreateSection, Name: "Goals"},
	}}}}
	assert.ErrorIs(t, implicitParent.Validate(), ErrInvalidPlan)

	p := launchPlan()
	require.NoError(t, p.Validate())
	assert.Equal(t, 2, p.TotalGroups())
	assert.Equal(t, 3, p.TotalActions())
}

func TestActionValidate(t *testing.T) {
	pageId := uuid.New()
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"page without name", Action{Type: ActionCreatePage, Name: " "}, true},
		{"section without parent", Action{Type: ActionCreateSection, Name: "Goals"}, false},
		{"note without content", Action{Type: ActionCreateNote}, true},
		{"note with bad date", Action{Type: ActionCreateNote, Content: "x", Date: "tomorrow"}, true},
		{"note with date", Action{Type: ActionCreateNote, Content: "x", Date: "2024-05-01"}, false},
		{"delete page by id", Action{Type: ActionDeletePage, PageId: &pageId}, false},
		{"delete page without ref", Action{Type: ActionDeletePage}, true},
		{"delete section without ref", Action{Type: ActionDeleteSection}, true},
		{"delete notes with empty filter", Action{Type: ActionDeleteNotes, Filter: &bulk.Filter{}}, true},
		{"delete notes", Action{Type: ActionDeleteNotes, Filter: &bulk.Filter{Tags: []string{"old"}}}, false},
		{"unknown", Action{Type: "rename_page"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeAssignsIdsAndPending(t *testing.T) {
	p := launchPlan()
	p.Groups[0].Status = StatusApproved
	p.Groups[1].Id = "custom"
	p.Normalize()

	assert.Equal(t, "group-1", p.Groups[0].Id)
	assert.Equal(t, "custom", p.Groups[1].Id)
	for _, g := range p.Groups {
		assert.Equal(t, StatusPending, g.Status)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := launchPlan()
	p.Groups[1].Actions[0].Tags = []string{"a"}
	p.Groups[1].Actions[1].Filter = &bulk.Filter{Tags: []string{"b"}}

	c := p.Clone()
	if diff := cmp.Diff(p, c); diff != "" {
		t.Fatalf("clone differs (-want +got):\n%s", diff)
	}
	c.Groups[1].Actions[0].Tags[0] = "changed"
	c.Groups[1].Actions[1].Filter.Tags[0] = "changed"
	assert.Equal(t, "a", p.Groups[1].Actions[0].Tags[0])
	assert.Equal(t, "b", p.Groups[1].Actions[1].Filter.Tags[0])
}
