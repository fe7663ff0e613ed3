package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/store"

	"github.com/google/uuid"
)

// NoteListener is told when a note's content was written, so it can be re-embedded.
type NoteListener interface {
	NoteSaved(ctx context.Context, userId, noteId uuid.UUID)
}

// Operations are the scoped single-entity reads and writes shared by the
// tool handlers and the plan executor. Each call derives the caller's scope anew.
type Operations struct {
	store    store.Store
	listener NoteListener
	logger   logger.ILogger
}

func NewOperations(s store.Store, listener NoteListener, log logger.ILogger) *Operations {
	return &Operations{store: s, listener: listener, logger: log}
}

func (o *Operations) Scope(ctx context.Context, userId uuid.UUID) (*store.Scope, error) {
	return store.DeriveScope(ctx, o.store, userId)
}

// ResolvePageId matches a page name case-insensitively. ok is false when
// nothing matches; that is a recoverable miss, not an error.
func (o *Operations) ResolvePageId(ctx context.Context, userId uuid.UUID, name string) (uuid.UUID, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, false, nil
	}
	page, err := o.store.FindPageByName(ctx, userId, name)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("resolve page %q: %w", name, err)
	}
	if page == nil {
		return uuid.Nil, false, nil
	}
	return page.Id, true, nil
}

// ResolveSectionId matches a section name inside the user's pages, or inside
// pageId alone when it is given.
func (o *Operations) ResolveSectionId(ctx context.Context, userId uuid.UUID, name string, pageId *uuid.UUID) (uuid.UUID, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, false, nil
	}
	scope, err := o.Scope(ctx, userId)
	if err != nil {
		return uuid.Nil, false, err
	}
	pageIds := scope.PageIds()
	if pageId != nil {
		if _, ok := scope.Page(*pageId); !ok {
			return uuid.Nil, false, nil
		}
		pageIds = []uuid.UUID{*pageId}
	}
	section, err := o.store.FindSectionByName(ctx, pageIds, name)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("resolve section %q: %w", name, err)
	}
	if section == nil {
		return uuid.Nil, false, nil
	}
	return section.Id, true, nil
}

func (o *Operations) PageInScope(ctx context.Context, userId, pageId uuid.UUID) (bool, error) {
	scope, err := o.Scope(ctx, userId)
	if err != nil {
		return false, err
	}
	_, ok := scope.Page(pageId)
	return ok, nil
}

func (o *Operations) SectionInScope(ctx context.Context, userId, sectionId uuid.UUID) (bool, error) {
	scope, err := o.Scope(ctx, userId)
	if err != nil {
		return false, err
	}
	_, ok := scope.Section(sectionId)
	return ok, nil
}

func (o *Operations) CreatePage(ctx context.Context, userId uuid.UUID, name string) (*entity.Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: page name is required", ErrValidation)
	}
	page := &entity.Page{Name: name, UserId: userId}
	if err := o.store.CreatePage(ctx, page); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

func (o *Operations) CreateSection(ctx context.Context, userId, pageId uuid.UUID, name string) (*entity.Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: section name is required", ErrValidation)
	}
	ok, err := o.PageInScope(ctx, userId, pageId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("page %s: %w", pageId, ErrNotFound)
	}
	section := &entity.Section{Name: name, PageId: pageId}
	if err := o.store.CreateSection(ctx, section); err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}
	return section, nil
}

type NewNote struct {
	SectionId uuid.UUID
	Content   string
	Tags      []string
	Date      *time.Time
}

func (o *Operations) CreateNote(ctx context.Context, userId uuid.UUID, in NewNote) (*entity.Note, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: note content is required", ErrValidation)
	}
	ok, err := o.SectionInScope(ctx, userId, in.SectionId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("section %s: %w", in.SectionId, ErrNotFound)
	}
	note := &entity.Note{
		Content:   content,
		SectionId: in.SectionId,
		Tags:      store.NormalizeTags(in.Tags),
		Date:      in.Date,
	}
	if err := o.store.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	o.noteSaved(ctx, userId, note.Id)
	return note, nil
}

type NotePatch struct {
	Content   *string
	Tags      *[]string
	Completed *bool
	Date      *time.Time
	ClearDate bool
}

func (o *Operations) UpdateNote(ctx context.Context, userId, noteId uuid.UUID, patch NotePatch) (*entity.Note, error) {
	note, err := o.findNote(ctx, userId, noteId)
	if err != nil {
		return nil, err
	}
	contentChanged := false
	if patch.Content != nil {
		c := strings.TrimSpace(*patch.Content)
		if c == "" {
			return nil, fmt.Errorf("%w: note content cannot be empty", ErrValidation)
		}
		contentChanged = c != note.Content
		note.Content = c
	}
	if patch.Tags != nil {
		note.Tags = store.NormalizeTags(*patch.Tags)
	}
	if patch.Completed != nil {
		note.Completed = *patch.Completed
	}
	if patch.ClearDate {
		note.Date = nil
	} else if patch.Date != nil {
		note.Date = patch.Date
	}
	if err := o.store.UpdateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	if contentChanged {
		o.noteSaved(ctx, userId, note.Id)
	}
	return note, nil
}

func (o *Operations) DeleteNote(ctx context.Context, userId, noteId uuid.UUID) error {
	if _, err := o.findNote(ctx, userId, noteId); err != nil {
		return err
	}
	n, err := o.store.DeleteNotes(ctx, []uuid.UUID{noteId})
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("note %s: %w", noteId, ErrNotFound)
	}
	return nil
}

func (o *Operations) DeletePage(ctx context.Context, userId, pageId uuid.UUID) error {
	ok, err := o.PageInScope(ctx, userId, pageId)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("page %s: %w", pageId, ErrNotFound)
	}
	if err := o.store.DeletePage(ctx, pageId); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

func (o *Operations) DeleteSection(ctx context.Context, userId, sectionId uuid.UUID) error {
	ok, err := o.SectionInScope(ctx, userId, sectionId)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("section %s: %w", sectionId, ErrNotFound)
	}
	if err := o.store.DeleteSection(ctx, sectionId); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

func (o *Operations) findNote(ctx context.Context, userId, noteId uuid.UUID) (*entity.Note, error) {
	scope, err := o.Scope(ctx, userId)
	if err != nil {
		return nil, err
	}
	sectionIds := scope.SectionIds()
	if len(sectionIds) == 0 {
		return nil, fmt.Errorf("note %s: %w", noteId, ErrNotFound)
	}
	notes, err := o.store.FindNotes(ctx, store.NoteQuery{SectionIds: sectionIds, Ids: []uuid.UUID{noteId}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("note %s: %w", noteId, ErrNotFound)
	}
	return notes[0], nil
}

func (o *Operations) noteSaved(ctx context.Context, userId, noteId uuid.UUID) {
	if o.listener != nil {
		o.listener.NoteSaved(ctx, userId, noteId)
	}
}
