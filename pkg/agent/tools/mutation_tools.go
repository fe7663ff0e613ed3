package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/store"

	"github.com/google/uuid"
)

var errMissingRef = errors.New("either an id or a name is required")

type createPageArgs struct {
	Name string `json:"name" validate:"required,max=255"`
}

type createSectionArgs struct {
	Name     string     `json:"name" validate:"required,max=255"`
	PageId   *uuid.UUID `json:"pageId,omitempty"`
	PageName string     `json:"pageName,omitempty"`
}

func (a *createSectionArgs) Check() error {
	if a.PageId == nil && strings.TrimSpace(a.PageName) == "" {
		return fmt.Errorf("page: %w", errMissingRef)
	}
	return nil
}

type createNoteArgs struct {
	Content     string     `json:"content" validate:"required"`
	SectionId   *uuid.UUID `json:"sectionId,omitempty"`
	SectionName string     `json:"sectionName,omitempty"`
	PageName    string     `json:"pageName,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Date        string     `json:"date,omitempty"`
}

func (a *createNoteArgs) Check() error {
	if a.SectionId == nil && strings.TrimSpace(a.SectionName) == "" {
		return fmt.Errorf("section: %w", errMissingRef)
	}
	if _, err := store.ParseDate(a.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	return nil
}

type updateNoteArgs struct {
	NoteId    uuid.UUID `json:"noteId"`
	Content   *string   `json:"content,omitempty"`
	Tags      *[]string `json:"tags,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	Date      *string   `json:"date,omitempty"`
}

func (a *updateNoteArgs) Check() error {
	if a.NoteId == uuid.Nil {
		return fmt.Errorf("noteId is required")
	}
	if a.Content == nil && a.Tags == nil && a.Completed == nil && a.Date == nil {
		return fmt.Errorf("nothing to update")
	}
	if a.Date != nil {
		if _, err := store.ParseDate(*a.Date); err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD")
		}
	}
	return nil
}

type noteIdArgs struct {
	NoteId uuid.UUID `json:"noteId"`
}

func (a *noteIdArgs) Check() error {
	if a.NoteId == uuid.Nil {
		return fmt.Errorf("noteId is required")
	}
	return nil
}

type pageRefArgs struct {
	PageId   *uuid.UUID `json:"pageId,omitempty"`
	PageName string     `json:"pageName,omitempty"`
}

func (a *pageRefArgs) Check() error {
	if a.PageId == nil && strings.TrimSpace(a.PageName) == "" {
		return fmt.Errorf("page: %w", errMissingRef)
	}
	return nil
}

type sectionRefArgs struct {
	SectionId   *uuid.UUID `json:"sectionId,omitempty"`
	SectionName string     `json:"sectionName,omitempty"`
	PageName    string     `json:"pageName,omitempty"`
}

func (a *sectionRefArgs) Check() error {
	if a.SectionId == nil && strings.TrimSpace(a.SectionName) == "" {
		return fmt.Errorf("section: %w", errMissingRef)
	}
	return nil
}

type bulkUpdateArgs struct {
	Filter bulk.Filter `json:"filter"`
	bulk.Mutation
}

type bulkDeleteArgs struct {
	Filter bulk.Filter `json:"filter"`
}

type deletedResult struct {
	Success bool      `json:"success"`
	Deleted string    `json:"deleted"`
	Id      uuid.UUID `json:"id"`
}

type bulkResult struct {
	Success       bool   `json:"success"`
	Operation     string `json:"operation"`
	AffectedCount int64  `json:"affectedCount"`
}

func (r *Registry) registerMutationTools() {
	r.register(newHandler(r.validate, CreatePage,
		"Create a page.",
		schemaCreatePage, r.createPage))
	r.register(newHandler(r.validate, CreateSection,
		"Create a section inside an existing page.",
		schemaCreateSection, r.createSection))
	r.register(newHandler(r.validate, CreateNote,
		"Create a note inside an existing section.",
		schemaCreateNote, r.createNote))
	r.register(newHandler(r.validate, UpdateNote,
		"Change one note's content, tags, completion or date.",
		schemaUpdateNote, r.updateNote))
	r.register(newHandler(r.validate, DeleteNote,
		"Delete one note by id.",
		schemaNoteId, r.deleteNote))
	r.register(newHandler(r.validate, DeletePage,
		"Delete a page with all of its sections and notes.",
		schemaPageRef, r.deletePage))
	r.register(newHandler(r.validate, DeleteSection,
		"Delete a section with all of its notes.",
		schemaSectionRef, r.deleteSection))
	r.register(newHandler(r.validate, BulkUpdateNotes,
		"Apply one change to every note matching a non-empty filter. Confirm with the user first.",
		schemaBulkUpdate, r.bulkUpdate))
	r.register(newHandler(r.validate, BulkDeleteNotes,
		"Delete every note matching a non-empty filter. Confirm with the user first.",
		schemaBulkDelete, r.bulkDelete))
}

func (r *Registry) createPage(ctx context.Context, userId uuid.UUID, args createPageArgs) (PageView, error) {
	page, err := r.ops.CreatePage(ctx, userId, args.Name)
	if err != nil {
		return PageView{}, err
	}
	return toPageView(page), nil
}

func (r *Registry) createSection(ctx context.Context, userId uuid.UUID, args createSectionArgs) (SectionView, error) {
	pageId, err := r.pageRef(ctx, userId, args.PageId, args.PageName)
	if err != nil {
		return SectionView{}, err
	}
	section, err := r.ops.CreateSection(ctx, userId, pageId, args.Name)
	if err != nil {
		return SectionView{}, err
	}
	return toSectionView(section), nil
}

func (r *Registry) createNote(ctx context.Context, userId uuid.UUID, args createNoteArgs) (NoteView, error) {
	sectionId, err := r.sectionRef(ctx, userId, args.SectionId, args.SectionName, args.PageName)
	if err != nil {
		return NoteView{}, err
	}
	date, _ := store.ParseDate(args.Date)
	note, err := r.ops.CreateNote(ctx, userId, NewNote{
		SectionId: sectionId,
		Content:   args.Content,
		Tags:      args.Tags,
		Date:      date,
	})
	if err != nil {
		return NoteView{}, err
	}
	return toNoteView(note), nil
}

func (r *Registry) updateNote(ctx context.Context, userId uuid.UUID, args updateNoteArgs) (NoteView, error) {
	patch := NotePatch{
		Content:   args.Content,
		Tags:      args.Tags,
		Completed: args.Completed,
	}
	if args.Date != nil {
		var date *time.Time
		date, _ = store.ParseDate(*args.Date)
		patch.Date = date
		patch.ClearDate = date == nil
	}
	note, err := r.ops.UpdateNote(ctx, userId, args.NoteId, patch)
	if err != nil {
		return NoteView{}, err
	}
	return toNoteView(note), nil
}

func (r *Registry) deleteNote(ctx context.Context, userId uuid.UUID, args noteIdArgs) (deletedResult, error) {
	if err := r.ops.DeleteNote(ctx, userId, args.NoteId); err != nil {
		return deletedResult{}, err
	}
	return deletedResult{Success: true, Deleted: "note", Id: args.NoteId}, nil
}

func (r *Registry) deletePage(ctx context.Context, userId uuid.UUID, args pageRefArgs) (deletedResult, error) {
	pageId, err := r.pageRef(ctx, userId, args.PageId, args.PageName)
	if err != nil {
		return deletedResult{}, err
	}
	if err := r.ops.DeletePage(ctx, userId, pageId); err != nil {
		return deletedResult{}, err
	}
	return deletedResult{Success: true, Deleted: "page", Id: pageId}, nil
}

func (r *Registry) deleteSection(ctx context.Context, userId uuid.UUID, args sectionRefArgs) (deletedResult, error) {
	sectionId, err := r.sectionRef(ctx, userId, args.SectionId, args.SectionName, args.PageName)
	if err != nil {
		return deletedResult{}, err
	}
	if err := r.ops.DeleteSection(ctx, userId, sectionId); err != nil {
		return deletedResult{}, err
	}
	return deletedResult{Success: true, Deleted: "section", Id: sectionId}, nil
}

func (r *Registry) bulkUpdate(ctx context.Context, userId uuid.UUID, args bulkUpdateArgs) (bulkResult, error) {
	res, err := r.bulk.Apply(ctx, userId, args.Filter, args.Mutation)
	if err != nil {
		return bulkResult{}, err
	}
	return bulkResult{Success: true, Operation: string(res.Operation), AffectedCount: res.AffectedCount}, nil
}

func (r *Registry) bulkDelete(ctx context.Context, userId uuid.UUID, args bulkDeleteArgs) (bulkResult, error) {
	res, err := r.bulk.Delete(ctx, userId, args.Filter)
	if err != nil {
		return bulkResult{}, err
	}
	return bulkResult{Success: true, Operation: string(res.Operation), AffectedCount: res.AffectedCount}, nil
}

// pageRef resolves an id (checked against scope later by the operation) or a name.
func (r *Registry) pageRef(ctx context.Context, userId uuid.UUID, id *uuid.UUID, name string) (uuid.UUID, error) {
	if id != nil && *id != uuid.Nil {
		return *id, nil
	}
	pageId, ok, err := r.ops.ResolvePageId(ctx, userId, name)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("page %q: %w", name, ErrNotFound)
	}
	return pageId, nil
}

func (r *Registry) sectionRef(ctx context.Context, userId uuid.UUID, id *uuid.UUID, name, pageName string) (uuid.UUID, error) {
	if id != nil && *id != uuid.Nil {
		return *id, nil
	}
	var pageId *uuid.UUID
	if strings.TrimSpace(pageName) != "" {
		pid, err := r.pageRef(ctx, userId, nil, pageName)
		if err != nil {
			return uuid.Nil, err
		}
		pageId = &pid
	}
	sectionId, ok, err := r.ops.ResolveSectionId(ctx, userId, name, pageId)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("section %q: %w", name, ErrNotFound)
	}
	return sectionId, nil
}
