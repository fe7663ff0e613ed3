// Package plan holds the multi-group plan model, the review state machine
// and the executor that commits approved groups.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/store"

	"github.com/google/uuid"
)

var ErrInvalidPlan = errors.New("invalid plan")

type ActionType string

const (
	ActionCreatePage    ActionType = "create_page"
	ActionCreateSection ActionType = "create_section"
	ActionCreateNote    ActionType = "create_note"
	ActionDeletePage    ActionType = "delete_page"
	ActionDeleteSection ActionType = "delete_section"
	ActionDeleteNotes   ActionType = "delete_notes"
)

// Action is a tagged variant; Type decides which fields are meaningful.
type Action struct {
	Type        ActionType   `json:"type"`
	Name        string       `json:"name,omitempty"`
	PageId      *uuid.UUID   `json:"pageId,omitempty"`
	PageName    string       `json:"pageName,omitempty"`
	SectionId   *uuid.UUID   `json:"sectionId,omitempty"`
	SectionName string       `json:"sectionName,omitempty"`
	Content     string       `json:"content,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Date        string       `json:"date,omitempty"`
	Filter      *bulk.Filter `json:"filter,omitempty"`
}

func (a Action) hasPageRef() bool {
	return (a.PageId != nil && *a.PageId != uuid.Nil) || strings.TrimSpace(a.PageName) != ""
}

func (a Action) hasSectionRef() bool {
	return (a.SectionId != nil && *a.SectionId != uuid.Nil) || strings.TrimSpace(a.SectionName) != ""
}

// Validate checks the fields required by the action's type.
// create_section and create_note may omit their parent reference; the
// executor then uses the page or section created last in the same run.
func (a Action) Validate() error {
	switch a.Type {
	case ActionCreatePage:
		if strings.TrimSpace(a.Name) == "" {
			return errors.New("create_page needs a name")
		}
	case ActionCreateSection:
		if strings.TrimSpace(a.Name) == "" {
			return errors.New("create_section needs a name")
		}
	case ActionCreateNote:
		if strings.TrimSpace(a.Content) == "" {
			return errors.New("create_note needs content")
		}
		if _, err := store.ParseDate(a.Date); err != nil {
			return errors.New("create_note date must be YYYY-MM-DD")
		}
	case ActionDeletePage:
		if !a.hasPageRef() {
			return errors.New("delete_page needs pageId or pageName")
		}
	case ActionDeleteSection:
		if !a.hasSectionRef() {
			return errors.New("delete_section needs sectionId or sectionName")
		}
	case ActionDeleteNotes:
		if a.Filter == nil || a.Filter.IsEmpty() {
			return fmt.Errorf("delete_notes: %w", bulk.ErrEmptyFilter)
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

type GroupStatus string

const (
	StatusPending  GroupStatus = "pending"
	StatusApproved GroupStatus = "approved"
	StatusSkipped  GroupStatus = "skipped"
)

type Group struct {
	Id          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Actions     []Action    `json:"actions"`
	Status      GroupStatus `json:"status"`
}

// Validate checks the group's actions and that it does not create a page and
// also build inside that page; dependent work belongs in a later group.
func (g Group) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return errors.New("group needs a title")
	}
	if len(g.Actions) == 0 {
		return errors.New("group needs at least one action")
	}
	createdPages := map[string]bool{}
	createsPage := false
	for i, a := range g.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		if a.Type == ActionCreatePage {
			createsPage = true
			createdPages[strings.ToLower(strings.TrimSpace(a.Name))] = true
		}
	}
	if !createsPage {
		return nil
	}
	for i, a := range g.Actions {
		if a.Type != ActionCreateSection && a.Type != ActionCreateNote {
			continue
		}
		dependsOnNewPage := createdPages[strings.ToLower(strings.TrimSpace(a.PageName))]
		if a.Type == ActionCreateSection && !a.hasPageRef() {
			dependsOnNewPage = true
		}
		if dependsOnNewPage {
			return fmt.Errorf("action %d builds inside a page created in the same group; move it to a later group", i)
		}
	}
	return nil
}

type Plan struct {
	Summary string  `json:"summary"`
	Groups  []Group `json:"groups"`
}

func (p *Plan) TotalGroups() int { return len(p.Groups) }

func (p *Plan) TotalActions() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Actions)
	}
	return n
}

// Validate reports every structural problem wrapped in ErrInvalidPlan.
func (p *Plan) Validate() error {
	if p == nil || len(p.Groups) == 0 {
		return fmt.Errorf("%w: a plan needs at least one group", ErrInvalidPlan)
	}
	for i, g := range p.Groups {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("%w: group %d: %v", ErrInvalidPlan, i, err)
		}
	}
	return nil
}

// Normalize fills missing group ids and resets every status to pending.
func (p *Plan) Normalize() {
	for i := range p.Groups {
		p.Groups[i].normalize(i)
	}
}

func (g *Group) normalize(index int) {
	if strings.TrimSpace(g.Id) == "" {
		g.Id = fmt.Sprintf("group-%d", index+1)
	}
	g.Status = StatusPending
}

// Clone deep-copies the plan so callers cannot mutate machine-owned state.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := &Plan{Summary: p.Summary, Groups: make([]Group, len(p.Groups))}
	for i, g := range p.Groups {
		out.Groups[i] = g.clone()
	}
	return out
}

func (g Group) clone() Group {
	out := g
	out.Actions = make([]Action, len(g.Actions))
	for i, a := range g.Actions {
		c := a
		c.Tags = cloneSlice(a.Tags)
		if a.Filter != nil {
			f := *a.Filter
			f.Tags = cloneSlice(a.Filter.Tags)
			f.NoteIds = cloneSlice(a.Filter.NoteIds)
			c.Filter = &f
		}
		out.Actions[i] = c
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// ExecutionContext threads id/name bindings through one execution.
type ExecutionContext struct {
	LastPageId      *uuid.UUID
	LastSectionId   *uuid.UUID
	CreatedPages    map[string]uuid.UUID
	CreatedSections map[string]uuid.UUID
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		CreatedPages:    map[string]uuid.UUID{},
		CreatedSections: map[string]uuid.UUID{},
	}
}

func (c *ExecutionContext) recordPage(id uuid.UUID, name string) {
	c.CreatedPages[id.String()] = id
	c.CreatedPages[refName(name)] = id
	c.LastPageId = &id
}

// recordSection binds the section under its id, its bare name and its name
// within pageId. The bare name points at the section created last.
func (c *ExecutionContext) recordSection(id, pageId uuid.UUID, name string) {
	c.CreatedSections[id.String()] = id
	c.CreatedSections[refName(name)] = id
	c.CreatedSections[sectionKey(pageId, name)] = id
	c.LastSectionId = &id
}

func (c *ExecutionContext) createdPage(name string) (uuid.UUID, bool) {
	id, ok := c.CreatedPages[refName(name)]
	return id, ok
}

func (c *ExecutionContext) createdSection(name string) (uuid.UUID, bool) {
	id, ok := c.CreatedSections[refName(name)]
	return id, ok
}

func (c *ExecutionContext) createdSectionIn(pageId uuid.UUID, name string) (uuid.UUID, bool) {
	id, ok := c.CreatedSections[sectionKey(pageId, name)]
	return id, ok
}

func refName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sectionKey(pageId uuid.UUID, name string) string {
	return pageId.String() + "/" + refName(name)
}
