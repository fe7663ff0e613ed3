package service_test

import (
	"context"
	"testing"

	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/internal/service"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	userID    uuid.UUID
	eventType string
	data      interface{}
}

type fakeNotifier struct{ sent []sent }

func (n *fakeNotifier) Send(userID uuid.UUID, eventType string, data interface{}) {
	n.sent = append(n.sent, sent{userID, eventType, data})
}

func TestEventRelayRoutesToOwner(t *testing.T) {
	n := &fakeNotifier{}
	relay := service.NewEventRelayService(n, logger.NewNopLogger())
	owner := uuid.New()

	err := relay.Handle(context.Background(), events.New(events.TypePlanExecuted, owner, map[string]interface{}{"halted": false}))
	require.NoError(t, err)
	require.NoError(t, relay.Handle(context.Background(), events.New(events.TypeBulkApplied, uuid.Nil, nil)))

	require.Len(t, n.sent, 1)
	assert.Equal(t, owner, n.sent[0].userID)
	assert.Equal(t, events.TypePlanExecuted, n.sent[0].eventType)
	data := n.sent[0].data.(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"halted": false}, data["payload"])
}

func TestBulkEventObserverPublishes(t *testing.T) {
	rec := &eventRecorder{}
	observe := service.BulkEventObserver(rec, logger.NewNopLogger())
	user := uuid.New()

	observe(context.Background(), user, bulk.Result{Operation: bulk.OpSetCompletion, AffectedCount: 37})

	require.Len(t, rec.events, 1)
	evt := rec.events[0]
	assert.Equal(t, events.TypeBulkApplied, evt.EventType())
	assert.Equal(t, user, evt.Owner())
	assert.Equal(t, int64(37), evt.Payload()["affected_count"])
}
