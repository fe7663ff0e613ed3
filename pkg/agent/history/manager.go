// Package history keeps the bounded, compactable message log of one agent session.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

type Kind string

const (
	KindTextResponse     Kind = "text_response"
	KindClarification    Kind = "clarification"
	KindBulkConfirmation Kind = "bulk_confirmation"
	KindPlanProposal     Kind = "plan_proposal"
	KindError            Kind = "error"
	KindSummary          Kind = "summary"
)

// metadata key holding how many messages a summary replaced
const MetaSummarizedCount = "summarizedCount"

type Message struct {
	Id        uuid.UUID              `json:"id"`
	Role      Role                   `json:"role"`
	Kind      Kind                   `json:"kind"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Responded bool                   `json:"responded"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (m Message) clone() Message {
	if m.Metadata != nil {
		md := make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			md[k] = v
		}
		m.Metadata = md
	}
	return m
}

// Manager is an append-only log. Messages are immutable once appended except
// through Update, which the plan flow uses for responded and plan metadata.
type Manager struct {
	mu        sync.RWMutex
	messages  []Message
	threshold int
	tail      int
	now       func() time.Time
}

// NewManager panics if tail is not below threshold, since compaction could
// then never shrink the log.
func NewManager(threshold, tail int) *Manager {
	if threshold <= 0 || tail < 0 || tail >= threshold {
		panic(fmt.Sprintf("history: invalid compaction bounds threshold=%d tail=%d", threshold, tail))
	}
	return &Manager{threshold: threshold, tail: tail, now: time.Now}
}

// Append stores msg, filling Id and Timestamp when unset, and returns the stored copy.
func (m *Manager) Append(msg Message) Message {
	if msg.Id == uuid.Nil {
		msg.Id = uuid.New()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now()
	}
	msg = msg.clone()
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return msg.clone()
}

// Recent returns up to n of the newest messages, oldest first.
func (m *Manager) Recent(n int) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || len(m.messages) == 0 {
		return []Message{}
	}
	start := len(m.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, 0, len(m.messages)-start)
	for _, msg := range m.messages[start:] {
		out = append(out, msg.clone())
	}
	return out
}

func (m *Manager) All() []Message {
	m.mu.RLock()
	n := len(m.messages)
	m.mu.RUnlock()
	return m.Recent(n)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// NeedsCompaction reports whether the log has crossed the threshold.
func (m *Manager) NeedsCompaction() bool {
	return m.Len() > m.threshold
}

// Compact collapses an over-threshold log into one summary message followed
// by the newest tail messages. It returns false and changes nothing when the
// log is at or under the threshold, so repeated calls are no-ops.
func (m *Manager) Compact() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) <= m.threshold {
		return false
	}

	cut := len(m.messages) - m.tail
	dropped := m.messages[:cut]
	summarized := 0
	for _, msg := range dropped {
		summarized += countOf(msg)
	}

	summary := Message{
		Id:        uuid.New(),
		Role:      RoleSystem,
		Kind:      KindSummary,
		Content:   fmt.Sprintf("Previous %d messages summarized", summarized),
		Timestamp: dropped[len(dropped)-1].Timestamp,
		Responded: true,
		Metadata:  map[string]interface{}{MetaSummarizedCount: summarized},
	}

	compacted := make([]Message, 0, m.tail+1)
	compacted = append(compacted, summary)
	compacted = append(compacted, m.messages[cut:]...)
	m.messages = compacted
	return true
}

// countOf treats an earlier summary as the messages it stands for.
func countOf(msg Message) int {
	if msg.Kind != KindSummary {
		return 1
	}
	switch n := msg.Metadata[MetaSummarizedCount].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 1
}

// Update mutates the message with id in place. It returns false when the
// message is gone, for example after compaction.
func (m *Manager) Update(id uuid.UUID, fn func(*Message)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].Id == id {
			fn(&m.messages[i])
			return true
		}
	}
	return false
}

// LastWhere returns the newest message satisfying pred.
func (m *Manager) LastWhere(pred func(Message) bool) (Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if pred(m.messages[i]) {
			return m.messages[i].clone(), true
		}
	}
	return Message{}, false
}

// Restore replaces the log, used when a session is rebuilt from storage.
func (m *Manager) Restore(msgs []Message) {
	copied := make([]Message, len(msgs))
	for i, msg := range msgs {
		copied[i] = msg.clone()
	}
	m.mu.Lock()
	m.messages = copied
	m.mu.Unlock()
}
