package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-notetaking-agent/internal/dto"
	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/internal/repository/specification"
	"ai-notetaking-agent/internal/repository/unitofwork"
	"ai-notetaking-agent/pkg/embedding"
	"ai-notetaking-agent/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	chunkSize    = 1500
	chunkOverlap = 200
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber        message.Subscriber
	embedTopic        string
	profileTopic      string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	embeddingTimeout  time.Duration
	logger            logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	embedTopic string,
	profileTopic string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	embeddingTimeout time.Duration,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:        subscriber,
		embedTopic:        embedTopic,
		profileTopic:      profileTopic,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		embeddingTimeout:  embeddingTimeout,
		logger:            log,
	}
}

// Consume subscribes to the embedding and profile topics. Messages are
// handled in the background until ctx ends.
func (cs *consumerService) Consume(ctx context.Context) error {
	embeds, err := cs.subscriber.Subscribe(ctx, cs.embedTopic)
	if err != nil {
		return err
	}
	profiles, err := cs.subscriber.Subscribe(ctx, cs.profileTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range embeds {
			cs.processEmbed(ctx, msg)
		}
	}()
	go func() {
		for msg := range profiles {
			cs.processProfile(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processEmbed(ctx context.Context, msg *message.Message) {

	var payload dto.PublishEmbedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal embed job", map[string]interface{}{"error": err.Error()})
		msg.Ack() // a malformed job never becomes valid
		return
	}

	var err error
	switch payload.Kind {
	case dto.EmbedKindNote:
		err = cs.embedNote(ctx, payload.Id)
	case dto.EmbedKindMessage:
		err = cs.embedMessage(ctx, payload.Id)
	default:
		cs.logger.Warn("Consumer", "Unknown embed job kind", map[string]interface{}{"kind": payload.Kind})
	}

	if err != nil {
		cs.logger.Error("Consumer", "Embedding job failed", map[string]interface{}{
			"kind":  payload.Kind,
			"id":    payload.Id.String(),
			"error": err.Error(),
		})
	}
	// gochannel redelivers a nack at once, so failed jobs are dropped;
	// the next write to the note queues a fresh one
	msg.Ack()
}

func (cs *consumerService) generate(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, cs.embeddingTimeout)
	defer cancel()
	res, err := cs.embeddingProvider.Generate(ctx, text, embedding.TaskRetrievalDocument)
	if err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}

// embedNote replaces all chunks of a note. A note deleted in the meantime is not an error.
func (cs *consumerService) embedNote(ctx context.Context, noteId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	note, err := uow.NoteRepository().FindOne(ctx, specification.ByID{ID: noteId})
	if err != nil {
		return fmt.Errorf("load note: %w", err)
	}
	if note == nil {
		return nil
	}

	location := cs.location(ctx, uow, note)
	// every chunk carries the header so a hit can be placed without its note
	header := fmt.Sprintf("Location: %s\nTags: %s\n\n", location, strings.Join(note.Tags, ", "))
	chunks := lo.Map(utils.SplitText(note.Content, chunkSize, chunkOverlap), func(c string, _ int) string {
		return header + c
	})

	embeddings := make([]*entity.NoteEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := cs.generate(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		embeddings = append(embeddings, &entity.NoteEmbedding{
			Id:             uuid.New(),
			Document:       chunk,
			EmbeddingValue: vector,
			NoteId:         note.Id,
			ChunkIndex:     i,
			CreatedAt:      time.Now(),
		})
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.NoteEmbeddingRepository().DeleteByNoteId(ctx, note.Id); err != nil {
		return fmt.Errorf("delete old embeddings: %w", err)
	}
	if err := uow.NoteEmbeddingRepository().CreateBulk(ctx, embeddings); err != nil {
		return fmt.Errorf("store embeddings: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	cs.logger.Debug("Consumer", "Note embedded", map[string]interface{}{
		"note_id": noteId.String(),
		"chunks":  len(embeddings),
	})
	return nil
}

func (cs *consumerService) location(ctx context.Context, uow unitofwork.UnitOfWork, note *entity.Note) string {
	section, err := uow.SectionRepository().FindOne(ctx, specification.ByID{ID: note.SectionId})
	if err != nil || section == nil {
		return "unknown"
	}
	page, err := uow.PageRepository().FindOne(ctx, specification.ByID{ID: section.PageId})
	if err != nil || page == nil {
		return section.Name
	}
	return page.Name + " / " + section.Name
}

func (cs *consumerService) embedMessage(ctx context.Context, messageId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	stored, err := uow.AgentMessageRepository().FindOne(ctx, specification.ByID{ID: messageId})
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if stored == nil || strings.TrimSpace(stored.Content) == "" {
		return nil
	}

	vector, err := cs.generate(ctx, stored.Content)
	if err != nil {
		return err
	}
	return uow.AgentMessageRepository().UpdateEmbedding(ctx, messageId, vector)
}

// processProfile never retries; observations are advisory.
func (cs *consumerService) processProfile(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var obs dto.ProfileObservationMessage
	if err := json.Unmarshal(msg.Payload, &obs); err != nil {
		cs.logger.Warn("Consumer", "Failed to unmarshal profile observation", map[string]interface{}{"error": err.Error()})
		return
	}

	repo := cs.uowFactory.NewUnitOfWork(ctx).AgentProfileRepository()
	profile, err := repo.FindByUserId(ctx, obs.UserId)
	if err != nil {
		cs.logger.Warn("Consumer", "Failed to load profile", map[string]interface{}{
			"user_id": obs.UserId.String(),
			"error":   err.Error(),
		})
		return
	}
	if profile == nil {
		profile = &entity.AgentProfile{UserId: obs.UserId}
	}

	profile.Observe(obs.Terminal, obs.ToolsUsed, obs.PlanProposed, obs.BulkCalls, obs.ObservedAt)
	if err := repo.Save(ctx, profile); err != nil {
		cs.logger.Warn("Consumer", "Failed to save profile", map[string]interface{}{
			"user_id": obs.UserId.String(),
			"error":   err.Error(),
		})
	}
}
