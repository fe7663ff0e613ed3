package service

import (
	"context"
	"time"

	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/events"

	"github.com/google/uuid"
)

// Notifier pushes a typed payload to a user's live connections.
type Notifier interface {
	Send(userID uuid.UUID, eventType string, data interface{})
}

type EventRelayService struct {
	notifier Notifier
	logger   logger.ILogger
}

func NewEventRelayService(notifier Notifier, log logger.ILogger) *EventRelayService {
	return &EventRelayService{notifier: notifier, logger: log}
}

// Handle forwards a bus event to its owner's websocket clients.
func (r *EventRelayService) Handle(ctx context.Context, event events.Event) error {
	owner := event.Owner()
	if owner == uuid.Nil {
		r.logger.Warn("EventRelay", "Event without owner dropped", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	r.notifier.Send(owner, event.EventType(), map[string]interface{}{
		"payload":     event.Payload(),
		"occurred_at": event.Timestamp().Format(time.RFC3339),
	})
	return nil
}

// BulkEventObserver publishes BULK_APPLIED for every bulk change.
func BulkEventObserver(publisher EventPublisher, log logger.ILogger) bulk.Observer {
	return func(ctx context.Context, userId uuid.UUID, result bulk.Result) {
		evt := events.New(events.TypeBulkApplied, userId, map[string]interface{}{
			"operation":      string(result.Operation),
			"affected_count": result.AffectedCount,
		})
		if err := publisher.Publish(ctx, evt); err != nil {
			log.Warn("EventRelay", "Failed to publish bulk event", map[string]interface{}{
				"user_id": userId.String(),
				"error":   err.Error(),
			})
		}
	}
}
