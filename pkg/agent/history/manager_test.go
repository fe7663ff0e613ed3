package history

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(m *Manager, n int) {
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAgent
		}
		m.Append(Message{Role: role, Kind: KindTextResponse, Content: fmt.Sprintf("message %d", i)})
	}
}

func TestCompactKeepsTailAndSummarizes(t *testing.T) {
	m := NewManager(10, 4)
	fill(m, 11)
	require.True(t, m.NeedsCompaction())

	require.True(t, m.Compact())
	all := m.All()
	require.Len(t, all, 5)
	assert.Equal(t, KindSummary, all[0].Kind)
	assert.Equal(t, RoleSystem, all[0].Role)
	assert.Equal(t, "Previous 7 messages summarized", all[0].Content)
	assert.Equal(t, "message 7", all[1].Content)
	assert.Equal(t, "message 10", all[4].Content)
	assert.False(t, m.NeedsCompaction())
}

func TestCompactIsIdempotent(t *testing.T) {
	m := NewManager(10, 4)
	fill(m, 25)

	require.True(t, m.Compact())
	once := m.All()

	assert.False(t, m.Compact())
	twice := m.All()

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second compact changed history (-once +twice):\n%s", diff)
	}
}

func TestCompactUnderThresholdIsNoop(t *testing.T) {
	m := NewManager(10, 4)
	fill(m, 10)
	before := m.All()

	assert.False(t, m.Compact())
	if diff := cmp.Diff(before, m.All()); diff != "" {
		t.Fatalf("compact under threshold changed history:\n%s", diff)
	}
}

func TestCompactAccumulatesEarlierSummaries(t *testing.T) {
	m := NewManager(10, 4)
	fill(m, 11)
	require.True(t, m.Compact())
	fill(m, 6) // 5 + 6 = 11 > 10
	require.True(t, m.Compact())

	all := m.All()
	require.Len(t, all, 5)
	// the earlier summary stands for 7, plus the 6 plain messages dropped with it
	assert.Equal(t, "Previous 13 messages summarized", all[0].Content)
	assert.Equal(t, 13, all[0].Metadata[MetaSummarizedCount])
}

func TestRecentReturnsNewestOldestFirst(t *testing.T) {
	m := NewManager(50, 10)
	fill(m, 6)

	recent := m.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "message 3", recent[0].Content)
	assert.Equal(t, "message 5", recent[2].Content)

	assert.Len(t, m.Recent(100), 6)
	assert.Empty(t, m.Recent(0))
}

func TestAppendReturnsIndependentCopy(t *testing.T) {
	m := NewManager(50, 10)
	stored := m.Append(Message{Role: RoleAgent, Kind: KindPlanProposal, Metadata: map[string]interface{}{"plan": "p"}})
	stored.Metadata["plan"] = "changed"

	got, ok := m.LastWhere(func(msg Message) bool { return msg.Kind == KindPlanProposal })
	require.True(t, ok)
	assert.Equal(t, "p", got.Metadata["plan"])
	assert.NotEqual(t, stored.Id.String(), "00000000-0000-0000-0000-000000000000")
	assert.False(t, got.Timestamp.IsZero())
}

func TestUpdateMarksResponded(t *testing.T) {
	m := NewManager(50, 10)
	msg := m.Append(Message{Role: RoleAgent, Kind: KindClarification, Content: "Which page?"})

	ok := m.Update(msg.Id, func(stored *Message) { stored.Responded = true })
	require.True(t, ok)

	got, _ := m.LastWhere(func(Message) bool { return true })
	assert.True(t, got.Responded)
}

func TestNewManagerRejectsBadBounds(t *testing.T) {
	assert.Panics(t, func() { NewManager(10, 10) })
	assert.Panics(t, func() { NewManager(0, 0) })
	assert.NotPanics(t, func() { NewManager(40, 20) })
}
