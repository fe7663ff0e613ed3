package service

import (
	"context"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/repository/specification"
	"ai-notetaking-agent/internal/repository/unitofwork"
	"ai-notetaking-agent/pkg/agent/history"

	"github.com/google/uuid"
)

// MessageLog is the durable copy of session histories.
type MessageLog interface {
	Append(ctx context.Context, userId, sessionId uuid.UUID, msgs ...history.Message) error
	Recent(ctx context.Context, userId, sessionId uuid.UUID, limit int) ([]history.Message, error)
	Update(ctx context.Context, userId uuid.UUID, msg history.Message) error
	// LatestPlan returns the newest plan proposal or revision, or nil.
	LatestPlan(ctx context.Context, userId, sessionId uuid.UUID) (*history.Message, error)
}

type messageLog struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewMessageLog(uowFactory unitofwork.RepositoryFactory) MessageLog {
	return &messageLog{uowFactory: uowFactory}
}

func (l *messageLog) Append(ctx context.Context, userId, sessionId uuid.UUID, msgs ...history.Message) error {
	uow := l.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	for _, m := range msgs {
		if err := uow.AgentMessageRepository().Create(ctx, toAgentMessage(userId, sessionId, m)); err != nil {
			return err
		}
	}
	return uow.Commit()
}

func (l *messageLog) Recent(ctx context.Context, userId, sessionId uuid.UUID, limit int) ([]history.Message, error) {
	uow := l.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.AgentMessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.UserOwnedBy{UserID: userId},
		specification.NewestFirst{},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, err
	}

	msgs := make([]history.Message, len(rows))
	for i, row := range rows {
		// rows are newest first
		msgs[len(rows)-1-i] = fromAgentMessage(row)
	}
	return msgs, nil
}

func (l *messageLog) LatestPlan(ctx context.Context, userId, sessionId uuid.UUID) (*history.Message, error) {
	uow := l.uowFactory.NewUnitOfWork(ctx)
	row, err := uow.AgentMessageRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.UserOwnedBy{UserID: userId},
		specification.ByKind{Kind: string(history.KindPlanProposal)},
		specification.NewestFirst{},
	)
	if err != nil || row == nil {
		return nil, err
	}
	msg := fromAgentMessage(row)
	return &msg, nil
}

func (l *messageLog) Update(ctx context.Context, userId uuid.UUID, msg history.Message) error {
	uow := l.uowFactory.NewUnitOfWork(ctx)
	row, err := uow.AgentMessageRepository().FindOne(ctx,
		specification.ByID{ID: msg.Id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if row == nil {
		// summaries and other in-memory messages are never persisted
		return nil
	}
	row.Responded = msg.Responded
	row.Metadata = msg.Metadata
	return uow.AgentMessageRepository().Update(ctx, row)
}

func toAgentMessage(userId, sessionId uuid.UUID, m history.Message) *entity.AgentMessage {
	return &entity.AgentMessage{
		Id:        m.Id,
		SessionId: sessionId,
		UserId:    userId,
		Role:      string(m.Role),
		Kind:      string(m.Kind),
		Content:   m.Content,
		Metadata:  m.Metadata,
		Responded: m.Responded,
		CreatedAt: m.Timestamp,
	}
}

func fromAgentMessage(e *entity.AgentMessage) history.Message {
	return history.Message{
		Id:        e.Id,
		Role:      history.Role(e.Role),
		Kind:      history.Kind(e.Kind),
		Content:   e.Content,
		Timestamp: e.CreatedAt,
		Responded: e.Responded,
		Metadata:  e.Metadata,
	}
}
