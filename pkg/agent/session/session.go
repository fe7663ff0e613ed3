// Package session holds the in-memory state of one conversation and the
// queue that serializes turns against it.
package session

import (
	"fmt"
	"sync"
	"time"

	"ai-notetaking-agent/pkg/agent/history"
	"ai-notetaking-agent/pkg/agent/loop"
	"ai-notetaking-agent/pkg/agent/plan"

	"github.com/google/uuid"
)

type Session struct {
	UserId    uuid.UUID
	SessionId uuid.UUID
	History   *history.Manager
	Plan      *plan.Machine
	CreatedAt time.Time

	mu      sync.Mutex
	pending *loop.Resume
	loaded  bool
}

func New(userId, sessionId uuid.UUID, threshold, tail int) *Session {
	return &Session{
		UserId:    userId,
		SessionId: sessionId,
		History:   history.NewManager(threshold, tail),
		Plan:      plan.NewMachine(),
		CreatedAt: time.Now(),
	}
}

func Key(userId, sessionId uuid.UUID) string {
	return fmt.Sprintf("%s:%s", userId, sessionId)
}

func (s *Session) Key() string {
	return Key(s.UserId, s.SessionId)
}

// SetPending records the suspended tool call the next user message answers.
func (s *Session) SetPending(r *loop.Resume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = r
}

// TakePending returns and clears the suspended call.
func (s *Session) TakePending() *loop.Resume {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.pending
	s.pending = nil
	return r
}

func (s *Session) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// MarkLoaded reports whether this is the first call, so persisted history is
// restored exactly once.
func (s *Session) MarkLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return false
	}
	s.loaded = true
	return true
}
