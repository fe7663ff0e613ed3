package plan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeGroupPlan() *Plan {
	return &Plan{
		Summary: "Reorganize",
		Groups: []Group{
			{Title: "Create page", Actions: []Action{{Type: ActionCreatePage, Name: "Ops"}}},
			{Title: "Sections", Actions: []Action{{Type: ActionCreateSection, Name: "Runbooks", PageName: "Ops"}}},
			{Title: "Notes", Actions: []Action{{Type: ActionCreateNote, Content: "Rotate keys", SectionName: "Runbooks"}}},
		},
	}
}

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, TagIdle, m.Tag())

	require.NoError(t, m.StartPlan(threeGroupPlan()))
	tag, p, cursor := m.Snapshot()
	assert.Equal(t, TagReviewing, tag)
	assert.Equal(t, 0, cursor)
	for _, g := range p.Groups {
		assert.Equal(t, StatusPending, g.Status)
	}

	require.NoError(t, m.Approve(0))
	require.NoError(t, m.Skip(2))
	_, p, cursor = m.Snapshot()
	assert.Equal(t, 1, cursor)
	assert.Equal(t, StatusApproved, p.Groups[0].Status)
	assert.Equal(t, StatusPending, p.Groups[1].Status, "approve must not advance other groups")
	assert.Equal(t, StatusSkipped, p.Groups[2].Status)

	execPlan, ec, err := m.BeginExecution()
	require.NoError(t, err)
	require.NotNil(t, ec)
	assert.Equal(t, TagExecuting, m.Tag())
	assert.Equal(t, 3, execPlan.TotalGroups())

	assert.ErrorIs(t, m.StartPlan(threeGroupPlan()), ErrInvalidTransition)
	assert.ErrorIs(t, m.Approve(1), ErrInvalidTransition)

	report := &Report{CompletedActions: 1}
	tag, err = m.Finish(report)
	require.NoError(t, err)
	assert.Equal(t, TagComplete, tag)
	assert.Same(t, report, m.LastReport())

	assert.ErrorIs(t, m.Approve(0), ErrInvalidTransition)
	require.NoError(t, m.StartPlan(threeGroupPlan()), "a new plan may start after completion")
	assert.Equal(t, TagReviewing, m.Tag())
}

func TestMachineRequiresApprovedGroup(t *testing.T) {
	m := NewMachine()
	_, _, err := m.BeginExecution()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.StartPlan(threeGroupPlan()))
	require.NoError(t, m.Skip(0))
	_, _, err = m.BeginExecution()
	assert.ErrorIs(t, err, ErrNoApprovedGroups)
	assert.Equal(t, TagReviewing, m.Tag())
}

func TestMachineCancel(t *testing.T) {
	m := NewMachine()
	assert.ErrorIs(t, m.Cancel(), ErrInvalidTransition)

	require.NoError(t, m.StartPlan(threeGroupPlan()))
	require.NoError(t, m.Cancel())
	tag, p, _ := m.Snapshot()
	assert.Equal(t, TagIdle, tag)
	assert.Nil(t, p)

	require.NoError(t, m.StartPlan(threeGroupPlan()))
	require.NoError(t, m.Approve(0))
	_, _, err := m.BeginExecution()
	require.NoError(t, err)

	require.NoError(t, m.Cancel(), "cancel during execution is deferred")
	assert.Equal(t, TagExecuting, m.Tag())
	tag, err = m.Finish(&Report{})
	require.NoError(t, err)
	assert.Equal(t, TagIdle, tag)
	assert.Nil(t, m.LastReport())
}

func TestMachineIndexBounds(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartPlan(threeGroupPlan()))
	assert.ErrorIs(t, m.Approve(3), ErrGroupOutOfRange)
	assert.ErrorIs(t, m.Skip(-1), ErrGroupOutOfRange)
	assert.ErrorIs(t, m.ReviseGroup(7, Group{Title: "x", Actions: []Action{{Type: ActionCreatePage, Name: "x"}}}), ErrGroupOutOfRange)
}

func TestReviseGroupTouchesOnlyThatGroup(t *testing.T) {
	for index := 0; index < 3; index++ {
		m := NewMachine()
		require.NoError(t, m.StartPlan(threeGroupPlan()))
		require.NoError(t, m.Approve(0))
		require.NoError(t, m.Skip(1))
		require.NoError(t, m.Approve(2))
		_, before, _ := m.Snapshot()

		revised := Group{
			Title:   "Revised",
			Actions: []Action{{Type: ActionCreateNote, Content: "Rotate keys weekly", SectionName: "Runbooks", Tags: []string{"security"}}},
		}
		require.NoError(t, m.ReviseGroup(index, revised))

		tag, after, cursor := m.Snapshot()
		assert.Equal(t, TagReviewing, tag)
		assert.Equal(t, index, cursor)
		require.Len(t, after.Groups, len(before.Groups))

		for i := range before.Groups {
			if i == index {
				continue
			}
			if diff := cmp.Diff(before.Groups[i], after.Groups[i]); diff != "" {
				t.Errorf("revising group %d changed group %d (-before +after):\n%s", index, i, diff)
			}
		}
		got := after.Groups[index]
		assert.Equal(t, before.Groups[index].Id, got.Id)
		assert.Equal(t, StatusPending, got.Status)
		assert.Equal(t, "Revised", got.Title)
		assert.Equal(t, before.Summary, after.Summary)
	}
}

func TestReviseGroupRejectsInvalidGroup(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartPlan(threeGroupPlan()))
	_, before, _ := m.Snapshot()

	err := m.ReviseGroup(1, Group{Title: "empty"})
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, after, _ := m.Snapshot()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("rejected revision changed the plan:\n%s", diff)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartPlan(threeGroupPlan()))
	_, p, _ := m.Snapshot()
	p.Groups[0].Title = "mutated"
	p.Groups[0].Status = StatusApproved

	_, fresh, _ := m.Snapshot()
	assert.Equal(t, "Create page", fresh.Groups[0].Title)
	assert.Equal(t, StatusPending, fresh.Groups[0].Status)
}
