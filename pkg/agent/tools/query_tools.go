package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-notetaking-agent/internal/entity"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/store"
	"ai-notetaking-agent/pkg/embedding"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	defaultNoteLimit = 50
	maxNoteLimit     = 200
	searchThreshold  = 0.3
)

type noArgs struct{}

type getSectionsArgs struct {
	PageId   *uuid.UUID `json:"pageId,omitempty"`
	PageName string     `json:"pageName,omitempty"`
}

type getNotesArgs struct {
	Filter bulk.Filter `json:"filter"`
	Limit  int         `json:"limit,omitempty" validate:"gte=0,lte=200"`
}

type searchNotesArgs struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit,omitempty" validate:"gte=0,lte=50"`
}

type pagesResult struct {
	Pages []PageView `json:"pages"`
	Count int        `json:"count"`
}

type sectionsResult struct {
	Sections []SectionView `json:"sections"`
	Count    int           `json:"count"`
}

type notesResult struct {
	Notes []NoteView `json:"notes"`
	Count int        `json:"count"`
	Mode  string     `json:"mode,omitempty"`
}

type sectionStats struct {
	SectionId uuid.UUID `json:"sectionId"`
	Section   string    `json:"section"`
	Page      string    `json:"page"`
	Total     int64     `json:"total"`
	Completed int64     `json:"completed"`
}

type statsResult struct {
	Pages          int            `json:"pages"`
	Sections       int            `json:"sections"`
	TotalNotes     int64          `json:"totalNotes"`
	CompletedNotes int64          `json:"completedNotes"`
	Tags           []string       `json:"tags"`
	BySection      []sectionStats `json:"bySection"`
}

func (r *Registry) registerQueryTools() {
	r.register(newHandler(r.validate, GetPages,
		"List every page the user owns.",
		schemaEmpty, r.getPages))
	r.register(newHandler(r.validate, GetSections,
		"List sections, optionally only those of one page (by id or name).",
		schemaGetSections, r.getSections))
	r.register(newHandler(r.validate, GetNotes,
		"List notes matching a filter. An empty filter lists the most recent notes.",
		schemaGetNotes, r.getNotes))
	r.register(newHandler(r.validate, SearchNotes,
		"Semantic search over note content.",
		schemaSearchNotes, r.searchNotes))
	r.register(newHandler(r.validate, GetNoteStats,
		"Counts of notes per section, completion totals and the tag vocabulary.",
		schemaEmpty, r.getNoteStats))
}

func (r *Registry) getPages(ctx context.Context, userId uuid.UUID, _ noArgs) (pagesResult, error) {
	scope, err := r.ops.Scope(ctx, userId)
	if err != nil {
		return pagesResult{}, err
	}
	views := lo.Map(scope.Pages, func(p *entity.Page, _ int) PageView { return toPageView(p) })
	return pagesResult{Pages: views, Count: len(views)}, nil
}

func (r *Registry) getSections(ctx context.Context, userId uuid.UUID, args getSectionsArgs) (sectionsResult, error) {
	scope, err := r.ops.Scope(ctx, userId)
	if err != nil {
		return sectionsResult{}, err
	}
	sections := scope.Sections
	switch {
	case args.PageId != nil:
		if _, ok := scope.Page(*args.PageId); !ok {
			return sectionsResult{}, fmt.Errorf("page %s: %w", *args.PageId, ErrNotFound)
		}
		sections = scope.SectionsOf(*args.PageId)
	case strings.TrimSpace(args.PageName) != "":
		pageId, ok, err := r.ops.ResolvePageId(ctx, userId, args.PageName)
		if err != nil {
			return sectionsResult{}, err
		}
		if !ok {
			return sectionsResult{}, fmt.Errorf("page %q: %w", args.PageName, ErrNotFound)
		}
		sections = scope.SectionsOf(pageId)
	}
	views := lo.Map(sections, func(s *entity.Section, _ int) SectionView { return toSectionView(s) })
	return sectionsResult{Sections: views, Count: len(views)}, nil
}

func (r *Registry) getNotes(ctx context.Context, userId uuid.UUID, args getNotesArgs) (notesResult, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultNoteLimit
	}
	if limit > maxNoteLimit {
		limit = maxNoteLimit
	}

	scope, err := r.ops.Scope(ctx, userId)
	if err != nil {
		return notesResult{}, err
	}
	if args.Filter.SectionId != nil && *args.Filter.SectionId != uuid.Nil {
		if _, ok := scope.Section(*args.Filter.SectionId); !ok {
			return notesResult{}, fmt.Errorf("section %s: %w", *args.Filter.SectionId, ErrNotFound)
		}
	}
	sectionIds := scope.SectionIds()
	if len(sectionIds) == 0 {
		return notesResult{Notes: []NoteView{}}, nil
	}

	q := store.NoteQuery{
		SectionIds: sectionIds,
		Ids:        args.Filter.NoteIds,
		SectionId:  args.Filter.SectionId,
		Tags:       store.NormalizeTags(args.Filter.Tags),
		Completed:  args.Filter.Completed,
		Search:     args.Filter.Search,
		HasNoTags:  args.Filter.HasNoTags,
		Limit:      limit,
	}
	notes, err := r.store.FindNotes(ctx, q)
	if err != nil {
		return notesResult{}, err
	}
	views := lo.Map(notes, func(n *entity.Note, _ int) NoteView { return toNoteView(n) })
	return notesResult{Notes: views, Count: len(views)}, nil
}

func (r *Registry) searchNotes(ctx context.Context, userId uuid.UUID, args searchNotesArgs) (notesResult, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	scope, err := r.ops.Scope(ctx, userId)
	if err != nil {
		return notesResult{}, err
	}
	sectionIds := scope.SectionIds()
	if len(sectionIds) == 0 {
		return notesResult{Notes: []NoteView{}, Mode: "semantic"}, nil
	}

	if r.embedder != nil {
		views, err := r.semanticSearch(ctx, sectionIds, args.Query, limit)
		if err == nil {
			return notesResult{Notes: views, Count: len(views), Mode: "semantic"}, nil
		}
		r.logger.Warn("ToolRegistry", "Semantic search unavailable, falling back to text search", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}

	notes, err := r.store.FindNotes(ctx, store.NoteQuery{SectionIds: sectionIds, Search: args.Query, Limit: limit})
	if err != nil {
		return notesResult{}, err
	}
	views := lo.Map(notes, func(n *entity.Note, _ int) NoteView { return toNoteView(n) })
	return notesResult{Notes: views, Count: len(views), Mode: "text"}, nil
}

var errEmptyEmbedding = errors.New("empty embedding")

func (r *Registry) semanticSearch(ctx context.Context, sectionIds []uuid.UUID, query string, limit int) ([]NoteView, error) {
	embedCtx, cancel := context.WithTimeout(ctx, r.embeddingTimeout)
	defer cancel()
	resp, err := r.embedder.Generate(embedCtx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, errEmptyEmbedding
	}
	scored, err := r.store.SearchNotes(ctx, sectionIds, resp.Embedding.Values, limit, searchThreshold)
	if err != nil {
		return nil, err
	}
	return lo.Map(scored, func(s store.ScoredNote, _ int) NoteView {
		v := toNoteView(s.Note)
		v.Similarity = s.Similarity
		return v
	}), nil
}

func (r *Registry) getNoteStats(ctx context.Context, userId uuid.UUID, _ noArgs) (statsResult, error) {
	ov, err := store.BuildOverview(ctx, r.store, userId)
	if err != nil {
		return statsResult{}, err
	}
	res := statsResult{
		Pages:          len(ov.Pages),
		Sections:       ov.SectionCount(),
		TotalNotes:     ov.TotalNotes,
		CompletedNotes: ov.CompletedNotes,
		Tags:           ov.Tags,
		BySection:      []sectionStats{},
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}
	for _, p := range ov.Pages {
		for _, s := range p.Sections {
			res.BySection = append(res.BySection, sectionStats{
				SectionId: s.Section.Id,
				Section:   s.Section.Name,
				Page:      p.Page.Name,
				Total:     s.Total,
				Completed: s.Completed,
			})
		}
	}
	return res, nil
}
