// Package bulk applies filter-driven mutations and deletions to a user's notes.
package bulk

import (
	"context"
	"errors"
	"fmt"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrEmptyFilter      = errors.New("filter must contain at least one discriminating field")
	ErrSectionNotFound  = errors.New("section not found")
	ErrInvalidMutation  = errors.New("invalid mutation")
	ErrUnknownOperation = errors.New("unknown bulk operation")
)

type Operation string

const (
	OpSetCompletion Operation = "set_completion"
	OpSetTags       Operation = "set_tags"
	OpAddTags       Operation = "add_tags"
	OpRemoveTags    Operation = "remove_tags"
	OpMoveToSection Operation = "move_to_section"
	OpDelete        Operation = "delete"
)

// Mutation describes one change applied to every matched note.
type Mutation struct {
	Operation       Operation  `json:"operation"`
	Completed       *bool      `json:"completed,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	TargetSectionId *uuid.UUID `json:"targetSectionId,omitempty"`
}

func (m Mutation) Validate() error {
	switch m.Operation {
	case OpSetCompletion:
		if m.Completed == nil {
			return fmt.Errorf("%w: set_completion needs completed", ErrInvalidMutation)
		}
	case OpSetTags:
		// empty tag list clears tags
	case OpAddTags, OpRemoveTags:
		if len(store.NormalizeTags(m.Tags)) == 0 {
			return fmt.Errorf("%w: %s needs at least one tag", ErrInvalidMutation, m.Operation)
		}
	case OpMoveToSection:
		if m.TargetSectionId == nil || *m.TargetSectionId == uuid.Nil {
			return fmt.Errorf("%w: move_to_section needs targetSectionId", ErrInvalidMutation)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, m.Operation)
	}
	return nil
}

type Result struct {
	Operation     Operation `json:"operation"`
	AffectedCount int64     `json:"affectedCount"`
}

// Observer is told about every bulk change that touched at least one note.
type Observer func(ctx context.Context, userId uuid.UUID, result Result)

type Engine struct {
	store    store.Store
	logger   logger.ILogger
	observer Observer
}

func NewEngine(s store.Store, log logger.ILogger) *Engine {
	return &Engine{store: s, logger: log}
}

// OnApplied registers the observer. It must be set before the engine is shared.
func (e *Engine) OnApplied(o Observer) {
	e.observer = o
}

// Apply runs a mutation over every note the filter matches inside the user's scope.
func (e *Engine) Apply(ctx context.Context, userId uuid.UUID, filter Filter, m Mutation) (*Result, error) {
	if filter.IsEmpty() {
		return nil, ErrEmptyFilter
	}
	if m.Operation == OpDelete {
		return e.Delete(ctx, userId, filter)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	scope, notes, err := e.resolve(ctx, userId, filter)
	if err != nil {
		return nil, err
	}
	result := &Result{Operation: m.Operation}
	if len(notes) == 0 {
		return result, nil
	}
	ids := lo.Map(notes, func(n *entity.Note, _ int) uuid.UUID { return n.Id })

	switch m.Operation {
	case OpSetCompletion:
		result.AffectedCount, err = e.store.UpdateNotes(ctx, ids, store.NoteChanges{Completed: m.Completed})
	case OpSetTags:
		result.AffectedCount, err = e.store.UpdateNotes(ctx, ids, store.NoteChanges{Tags: store.NormalizeTags(m.Tags), SetTags: true})
	case OpAddTags, OpRemoveTags:
		result.AffectedCount, err = e.rewriteTags(ctx, notes, m)
	case OpMoveToSection:
		if _, ok := scope.Section(*m.TargetSectionId); !ok {
			return nil, ErrSectionNotFound
		}
		result.AffectedCount, err = e.store.UpdateNotes(ctx, ids, store.NoteChanges{SectionId: m.TargetSectionId})
	}
	if err != nil {
		e.logger.Error("BulkEngine", "Bulk mutation failed", map[string]interface{}{
			"user_id":   userId.String(),
			"operation": string(m.Operation),
			"matched":   len(ids),
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("bulk %s: %w", m.Operation, err)
	}

	e.logger.Info("BulkEngine", "Bulk mutation applied", map[string]interface{}{
		"user_id":   userId.String(),
		"operation": string(m.Operation),
		"matched":   len(ids),
		"affected":  result.AffectedCount,
	})
	e.notify(ctx, userId, *result)
	return result, nil
}

// Delete re-resolves the filter to ids and removes exactly those notes.
func (e *Engine) Delete(ctx context.Context, userId uuid.UUID, filter Filter) (*Result, error) {
	if filter.IsEmpty() {
		return nil, ErrEmptyFilter
	}
	_, notes, err := e.resolve(ctx, userId, filter)
	if err != nil {
		return nil, err
	}
	result := &Result{Operation: OpDelete}
	if len(notes) == 0 {
		return result, nil
	}
	ids := lo.Map(notes, func(n *entity.Note, _ int) uuid.UUID { return n.Id })
	result.AffectedCount, err = e.store.DeleteNotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("bulk delete: %w", err)
	}

	e.logger.Info("BulkEngine", "Bulk delete applied", map[string]interface{}{
		"user_id":  userId.String(),
		"matched":  len(ids),
		"affected": result.AffectedCount,
	})
	e.notify(ctx, userId, *result)
	return result, nil
}

// Preview returns the notes a filter would touch without changing anything.
func (e *Engine) Preview(ctx context.Context, userId uuid.UUID, filter Filter) ([]*entity.Note, error) {
	if filter.IsEmpty() {
		return nil, ErrEmptyFilter
	}
	_, notes, err := e.resolve(ctx, userId, filter)
	return notes, err
}

func (e *Engine) resolve(ctx context.Context, userId uuid.UUID, filter Filter) (*store.Scope, []*entity.Note, error) {
	scope, err := store.DeriveScope(ctx, e.store, userId)
	if err != nil {
		return nil, nil, err
	}
	if filter.SectionId != nil && *filter.SectionId != uuid.Nil {
		if _, ok := scope.Section(*filter.SectionId); !ok {
			return nil, nil, ErrSectionNotFound
		}
	}
	sectionIds := scope.SectionIds()
	if len(sectionIds) == 0 {
		return scope, nil, nil
	}
	notes, err := e.store.FindNotes(ctx, filter.toQuery(sectionIds))
	if err != nil {
		return nil, nil, fmt.Errorf("resolve filter: %w", err)
	}
	return scope, notes, nil
}

// rewriteTags does a per-note read-modify-write; set union and difference
// cannot be expressed as one column update.
func (e *Engine) rewriteTags(ctx context.Context, notes []*entity.Note, m Mutation) (int64, error) {
	tags := store.NormalizeTags(m.Tags)
	var affected int64
	for _, n := range notes {
		current := store.NormalizeTags(n.Tags)
		var next []string
		if m.Operation == OpAddTags {
			next = lo.Union(current, tags)
		} else {
			next = lo.Without(current, tags...)
		}
		// union only grows and difference only shrinks, so equal length means unchanged
		if len(next) == len(current) {
			continue
		}
		n.Tags = next
		if err := e.store.UpdateNote(ctx, n); err != nil {
			return affected, err
		}
		affected++
	}
	return affected, nil
}

func (e *Engine) notify(ctx context.Context, userId uuid.UUID, result Result) {
	if e.observer != nil && result.AffectedCount > 0 {
		e.observer(ctx, userId, result)
	}
}
