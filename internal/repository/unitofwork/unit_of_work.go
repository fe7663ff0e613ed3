package unitofwork

import (
	"context"

	"ai-notetaking-agent/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	PageRepository() contract.PageRepository
	SectionRepository() contract.SectionRepository
	NoteRepository() contract.NoteRepository
	NoteEmbeddingRepository() contract.NoteEmbeddingRepository

	AgentMessageRepository() contract.AgentMessageRepository
	AgentProfileRepository() contract.AgentProfileRepository
}
