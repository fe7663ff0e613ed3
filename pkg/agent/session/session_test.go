package session

import (
	"testing"

	"ai-notetaking-agent/pkg/agent/loop"
	"ai-notetaking-agent/pkg/agent/plan"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionPendingIsTakenOnce(t *testing.T) {
	s := New(uuid.New(), uuid.New(), 40, 20)
	assert.False(t, s.HasPending())

	s.SetPending(&loop.Resume{CallId: "c1", CallName: "confirm_action"})
	assert.True(t, s.HasPending())

	r := s.TakePending()
	if assert.NotNil(t, r) {
		assert.Equal(t, "c1", r.CallId)
	}
	assert.Nil(t, s.TakePending())
}

func TestSessionDefaults(t *testing.T) {
	userId, sessionId := uuid.New(), uuid.New()
	s := New(userId, sessionId, 40, 20)

	assert.Equal(t, Key(userId, sessionId), s.Key())
	assert.Equal(t, plan.TagIdle, s.Plan.Tag())
	assert.Zero(t, s.History.Len())
	assert.True(t, s.MarkLoaded())
	assert.False(t, s.MarkLoaded())
}
