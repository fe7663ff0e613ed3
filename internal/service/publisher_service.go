package service

import (
	"context"
	"encoding/json"

	"ai-notetaking-agent/internal/dto"
	"ai-notetaking-agent/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (ps *publisherService) Publish(ctx context.Context, payload []byte) error {
	// jobs outlive the request, so ctx is not attached to the message
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return ps.publisher.Publish(ps.topicName, msg)
}

// EmbedNotifier queues embedding jobs for written notes and persisted agent messages.
type EmbedNotifier struct {
	publisher IPublisherService
	logger    logger.ILogger
}

func NewEmbedNotifier(publisher IPublisherService, log logger.ILogger) *EmbedNotifier {
	return &EmbedNotifier{publisher: publisher, logger: log}
}

func (n *EmbedNotifier) NoteSaved(ctx context.Context, userId, noteId uuid.UUID) {
	n.queue(ctx, dto.PublishEmbedMessage{Kind: dto.EmbedKindNote, Id: noteId, UserId: userId})
}

func (n *EmbedNotifier) MessageSaved(ctx context.Context, userId, messageId uuid.UUID) {
	n.queue(ctx, dto.PublishEmbedMessage{Kind: dto.EmbedKindMessage, Id: messageId, UserId: userId})
}

func (n *EmbedNotifier) queue(ctx context.Context, payload dto.PublishEmbedMessage) {
	msgJson, err := json.Marshal(payload)
	if err != nil {
		return
	}
	// embedding is best effort; search falls back to text
	if err := n.publisher.Publish(ctx, msgJson); err != nil {
		n.logger.Warn("EmbedNotifier", "Failed to queue embedding job", map[string]interface{}{
			"kind":  payload.Kind,
			"id":    payload.Id.String(),
			"error": err.Error(),
		})
	}
}

func publishJSON(ctx context.Context, publisher IPublisherService, payload interface{}) error {
	msgJson, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return publisher.Publish(ctx, msgJson)
}
