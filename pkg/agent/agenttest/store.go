// Package agenttest provides in-memory fakes for exercising the agent core
// without Postgres or a model server.
package agenttest

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/pkg/agent/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var ErrLookupFailed = errors.New("agenttest: lookup failed")

// MemoryStore is a thread-safe store.Store. CreatedAt values come from a
// monotonic clock so "newest wins" is deterministic.
type MemoryStore struct {
	mu       sync.Mutex
	clock    time.Time
	pages    map[uuid.UUID]*entity.Page
	sections map[uuid.UUID]*entity.Section
	notes    map[uuid.UUID]*entity.Note
	messages []*entity.AgentMessage
	vectors  map[uuid.UUID][]float32

	failLookups map[string]struct{}
	failAll     error
}

var _ store.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		pages:       map[uuid.UUID]*entity.Page{},
		sections:    map[uuid.UUID]*entity.Section{},
		notes:       map[uuid.UUID]*entity.Note{},
		vectors:     map[uuid.UUID][]float32{},
		failLookups: map[string]struct{}{},
	}
}

// FailLookupsFor makes FindPageByName and FindSectionByName error for the
// given names, forcing callers onto ids they already hold.
func (m *MemoryStore) FailLookupsFor(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		m.failLookups[strings.ToLower(n)] = struct{}{}
	}
}

// FailAll makes every read return err. Pass nil to restore.
func (m *MemoryStore) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

func (m *MemoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// SeedPage, SeedSection and SeedNote insert fixtures directly.
func (m *MemoryStore) SeedPage(userId uuid.UUID, name string) *entity.Page {
	p := &entity.Page{Id: uuid.New(), Name: name, UserId: userId}
	_ = m.CreatePage(context.Background(), p)
	return p
}

func (m *MemoryStore) SeedSection(pageId uuid.UUID, name string) *entity.Section {
	s := &entity.Section{Id: uuid.New(), Name: name, PageId: pageId}
	_ = m.CreateSection(context.Background(), s)
	return s
}

func (m *MemoryStore) SeedNote(sectionId uuid.UUID, content string, tags []string, completed bool) *entity.Note {
	n := &entity.Note{Id: uuid.New(), SectionId: sectionId, Content: content, Tags: store.NormalizeTags(tags), Completed: completed}
	_ = m.CreateNote(context.Background(), n)
	return n
}

// SetVector attaches an embedding to a note or message id for similarity search.
func (m *MemoryStore) SetVector(id uuid.UUID, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = v
}

func (m *MemoryStore) AddMessage(msg *entity.AgentMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.tick()
	}
	m.messages = append(m.messages, msg)
}

// Note returns a copy of the stored note, or nil.
func (m *MemoryStore) Note(id uuid.UUID) *entity.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil
	}
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	return &c
}

func (m *MemoryStore) NoteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

func (m *MemoryStore) PageNames(userId uuid.UUID) []string {
	pages, _ := m.ListPages(context.Background(), userId)
	return lo.Map(pages, func(p *entity.Page, _ int) string { return p.Name })
}

func (m *MemoryStore) ListPages(_ context.Context, userId uuid.UUID) ([]*entity.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []*entity.Page
	for _, p := range m.pages {
		if p.UserId == userId {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) FindPageByName(_ context.Context, userId uuid.UUID, name string) (*entity.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.lookupErr(name); err != nil {
		return nil, err
	}
	var best *entity.Page
	for _, p := range m.pages {
		if p.UserId == userId && strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			if best == nil || p.CreatedAt.After(best.CreatedAt) {
				best = p
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

func (m *MemoryStore) lookupErr(name string) error {
	if m.failAll != nil {
		return m.failAll
	}
	if _, ok := m.failLookups[strings.ToLower(strings.TrimSpace(name))]; ok {
		return ErrLookupFailed
	}
	return nil
}

func (m *MemoryStore) CreatePage(_ context.Context, page *entity.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page.Id == uuid.Nil {
		page.Id = uuid.New()
	}
	page.CreatedAt = m.tick()
	c := *page
	m.pages[page.Id] = &c
	return nil
}

func (m *MemoryStore) DeletePage(_ context.Context, pageId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sections {
		if s.PageId == pageId {
			m.deleteSectionLocked(id)
		}
	}
	delete(m.pages, pageId)
	return nil
}

func (m *MemoryStore) ListSections(_ context.Context, pageIds []uuid.UUID) ([]*entity.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []*entity.Section
	for _, s := range m.sections {
		if lo.Contains(pageIds, s.PageId) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) FindSectionByName(_ context.Context, pageIds []uuid.UUID, name string) (*entity.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.lookupErr(name); err != nil {
		return nil, err
	}
	var best *entity.Section
	for _, s := range m.sections {
		if lo.Contains(pageIds, s.PageId) && strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			if best == nil || s.CreatedAt.After(best.CreatedAt) {
				best = s
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

func (m *MemoryStore) CreateSection(_ context.Context, section *entity.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if section.Id == uuid.Nil {
		section.Id = uuid.New()
	}
	section.CreatedAt = m.tick()
	c := *section
	m.sections[section.Id] = &c
	return nil
}

func (m *MemoryStore) DeleteSection(_ context.Context, sectionId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteSectionLocked(sectionId)
	return nil
}

func (m *MemoryStore) deleteSectionLocked(sectionId uuid.UUID) {
	for id, n := range m.notes {
		if n.SectionId == sectionId {
			delete(m.notes, id)
		}
	}
	delete(m.sections, sectionId)
}

func (m *MemoryStore) FindNotes(_ context.Context, q store.NoteQuery) ([]*entity.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))
	var out []*entity.Note
	for _, n := range m.notes {
		if !lo.Contains(q.SectionIds, n.SectionId) {
			continue
		}
		if len(q.Ids) > 0 && !lo.Contains(q.Ids, n.Id) {
			continue
		}
		if q.SectionId != nil && n.SectionId != *q.SectionId {
			continue
		}
		if !lo.EveryBy(q.Tags, n.HasTag) {
			continue
		}
		if q.Completed != nil && n.Completed != *q.Completed {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(n.Content), search) {
			continue
		}
		if q.HasNoTags && len(n.Tags) > 0 {
			continue
		}
		c := *n
		c.Tags = append([]string(nil), n.Tags...)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateNote(_ context.Context, note *entity.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if note.Id == uuid.Nil {
		note.Id = uuid.New()
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}
	note.CreatedAt = m.tick()
	c := *note
	c.Tags = append([]string(nil), note.Tags...)
	m.notes[note.Id] = &c
	return nil
}

func (m *MemoryStore) UpdateNote(_ context.Context, note *entity.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[note.Id]; !ok {
		return errors.New("agenttest: note not found")
	}
	c := *note
	c.Tags = append([]string(nil), note.Tags...)
	m.notes[note.Id] = &c
	return nil
}

func (m *MemoryStore) UpdateNotes(_ context.Context, ids []uuid.UUID, changes store.NoteChanges) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if changes.IsEmpty() {
		return 0, nil
	}
	var affected int64
	for _, id := range ids {
		n, ok := m.notes[id]
		if !ok {
			continue
		}
		if changes.Completed != nil {
			n.Completed = *changes.Completed
		}
		if changes.SetTags {
			n.Tags = append([]string{}, changes.Tags...)
		}
		if changes.SectionId != nil {
			n.SectionId = *changes.SectionId
		}
		affected++
	}
	return affected, nil
}

func (m *MemoryStore) DeleteNotes(_ context.Context, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	for _, id := range ids {
		if _, ok := m.notes[id]; ok {
			delete(m.notes, id)
			affected++
		}
	}
	return affected, nil
}

func (m *MemoryStore) CountNotes(_ context.Context, sectionIds []uuid.UUID) ([]store.SectionCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	bySection := map[uuid.UUID]*store.SectionCount{}
	for _, n := range m.notes {
		if !lo.Contains(sectionIds, n.SectionId) {
			continue
		}
		c, ok := bySection[n.SectionId]
		if !ok {
			c = &store.SectionCount{SectionId: n.SectionId}
			bySection[n.SectionId] = c
		}
		c.Total++
		if n.Completed {
			c.Completed++
		}
	}
	return lo.Map(lo.Values(bySection), func(c *store.SectionCount, _ int) store.SectionCount { return *c }), nil
}

func (m *MemoryStore) Tags(_ context.Context, sectionIds []uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tags []string
	for _, n := range m.notes {
		if lo.Contains(sectionIds, n.SectionId) {
			tags = append(tags, n.Tags...)
		}
	}
	tags = lo.Uniq(tags)
	sort.Strings(tags)
	return tags, nil
}

func (m *MemoryStore) SearchNotes(_ context.Context, sectionIds []uuid.UUID, vector []float32, limit int, threshold float64) ([]store.ScoredNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []store.ScoredNote
	for _, n := range m.notes {
		if !lo.Contains(sectionIds, n.SectionId) {
			continue
		}
		v, ok := m.vectors[n.Id]
		if !ok {
			continue
		}
		if sim := cosine(vector, v); sim >= threshold {
			c := *n
			out = append(out, store.ScoredNote{Note: &c, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SearchMessages(_ context.Context, userId uuid.UUID, vector []float32, limit int, threshold float64) ([]store.ScoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []store.ScoredMessage
	for _, msg := range m.messages {
		if msg.UserId != userId {
			continue
		}
		v, ok := m.vectors[msg.Id]
		if !ok {
			continue
		}
		if sim := cosine(vector, v); sim >= threshold {
			out = append(out, store.ScoredMessage{Message: msg, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
