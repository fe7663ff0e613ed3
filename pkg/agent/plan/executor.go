package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/store"
	"ai-notetaking-agent/pkg/agent/tools"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ai-notetaking-agent/plan")

type ActionResult struct {
	Index         int        `json:"index"`
	Type          ActionType `json:"type"`
	Success       bool       `json:"success"`
	EntityId      *uuid.UUID `json:"entityId,omitempty"`
	AffectedCount int64      `json:"affectedCount,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type GroupResult struct {
	Index     int            `json:"index"`
	Id        string         `json:"id"`
	Title     string         `json:"title"`
	Status    GroupStatus    `json:"status"`
	Attempted bool           `json:"attempted"`
	Actions   []ActionResult `json:"actions"`
}

// Report is the itemized outcome of one execution.
type Report struct {
	Groups           []GroupResult `json:"groups"`
	CompletedActions int           `json:"completedActions"`
	Halted           bool          `json:"halted"`
	FailedGroup      *int          `json:"failedGroup,omitempty"`
	FailedAction     *int          `json:"failedAction,omitempty"`
	Error            string        `json:"error,omitempty"`
	NotAttempted     []int         `json:"notAttempted"`
}

// Summary renders the report as one line for the conversation log.
func (r *Report) Summary() string {
	if !r.Halted {
		return fmt.Sprintf("Plan executed: %d action(s) completed.", r.CompletedActions)
	}
	return fmt.Sprintf("Plan halted at group %d after %d completed action(s): %s",
		*r.FailedGroup+1, r.CompletedActions, r.Error)
}

type Executor struct {
	ops    *tools.Operations
	bulk   *bulk.Engine
	logger logger.ILogger
}

func NewExecutor(ops *tools.Operations, engine *bulk.Engine, log logger.ILogger) *Executor {
	return &Executor{ops: ops, bulk: engine, logger: log}
}

// Execute runs approved groups strictly in order and stops at the first
// failing action. Groups after the failure are listed as not attempted.
func (e *Executor) Execute(ctx context.Context, userId uuid.UUID, p *Plan, ec *ExecutionContext) *Report {
	ctx, span := tracer.Start(ctx, "plan.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userId.String()),
		attribute.Int("groups", p.TotalGroups()),
		attribute.Int("actions", p.TotalActions()),
	)

	if ec == nil {
		ec = NewExecutionContext()
	}
	report := &Report{Groups: make([]GroupResult, 0, len(p.Groups)), NotAttempted: []int{}}

	for gi, g := range p.Groups {
		gr := GroupResult{Index: gi, Id: g.Id, Title: g.Title, Status: g.Status, Actions: []ActionResult{}}
		if report.Halted {
			report.NotAttempted = append(report.NotAttempted, gi)
			report.Groups = append(report.Groups, gr)
			continue
		}
		if g.Status != StatusApproved {
			report.Groups = append(report.Groups, gr)
			continue
		}

		gr.Attempted = true
		for ai, a := range g.Actions {
			res := e.executeAction(ctx, userId, a, ec)
			res.Index = ai
			gr.Actions = append(gr.Actions, res)
			if !res.Success {
				report.Halted = true
				failedGroup, failedAction := gi, ai
				report.FailedGroup = &failedGroup
				report.FailedAction = &failedAction
				report.Error = res.Error
				break
			}
			report.CompletedActions++
		}
		report.Groups = append(report.Groups, gr)
	}

	details := map[string]interface{}{
		"user_id":           userId.String(),
		"completed_actions": report.CompletedActions,
		"halted":            report.Halted,
	}
	if report.Halted {
		details["failed_group"] = *report.FailedGroup
		details["failed_action"] = *report.FailedAction
		details["error"] = report.Error
		span.SetStatus(codes.Error, report.Error)
		e.logger.Warn("PlanExecutor", "Plan execution halted", details)
	} else {
		e.logger.Info("PlanExecutor", "Plan executed", details)
	}
	return report
}

func (e *Executor) executeAction(ctx context.Context, userId uuid.UUID, a Action, ec *ExecutionContext) ActionResult {
	res := ActionResult{Type: a.Type}
	fail := func(err error) ActionResult {
		res.Error = err.Error()
		return res
	}
	if err := a.Validate(); err != nil {
		return fail(err)
	}

	switch a.Type {
	case ActionCreatePage:
		page, err := e.ops.CreatePage(ctx, userId, a.Name)
		if err != nil {
			return fail(err)
		}
		ec.recordPage(page.Id, page.Name)
		res.EntityId = &page.Id

	case ActionCreateSection:
		pageId, err := e.resolvePage(ctx, userId, a, ec, true)
		if err != nil {
			return fail(err)
		}
		section, err := e.ops.CreateSection(ctx, userId, pageId, a.Name)
		if err != nil {
			return fail(err)
		}
		ec.recordSection(section.Id, pageId, section.Name)
		res.EntityId = &section.Id

	case ActionCreateNote:
		sectionId, err := e.resolveSection(ctx, userId, a, ec, true)
		if err != nil {
			return fail(err)
		}
		date, _ := store.ParseDate(a.Date)
		note, err := e.ops.CreateNote(ctx, userId, tools.NewNote{
			SectionId: sectionId,
			Content:   a.Content,
			Tags:      a.Tags,
			Date:      date,
		})
		if err != nil {
			return fail(err)
		}
		res.EntityId = &note.Id

	case ActionDeletePage:
		pageId, err := e.resolvePage(ctx, userId, a, ec, false)
		if err != nil {
			return fail(err)
		}
		if err := e.ops.DeletePage(ctx, userId, pageId); err != nil {
			return fail(err)
		}
		res.EntityId = &pageId

	case ActionDeleteSection:
		sectionId, err := e.resolveSection(ctx, userId, a, ec, false)
		if err != nil {
			return fail(err)
		}
		if err := e.ops.DeleteSection(ctx, userId, sectionId); err != nil {
			return fail(err)
		}
		res.EntityId = &sectionId

	case ActionDeleteNotes:
		out, err := e.bulk.Delete(ctx, userId, *a.Filter)
		if err != nil {
			return fail(err)
		}
		res.AffectedCount = out.AffectedCount
	}

	res.Success = true
	return res
}

var errNoParent = errors.New("no reference given and nothing created earlier in this plan")

// resolvePage prefers an explicit id, then a page created earlier in this
// execution, then the live store. Created names are checked before the store
// so a page made in group i resolves in group i+1 without another query; since
// the newest page wins name ties, both orders agree.
func (e *Executor) resolvePage(ctx context.Context, userId uuid.UUID, a Action, ec *ExecutionContext, allowLast bool) (uuid.UUID, error) {
	if a.PageId != nil && *a.PageId != uuid.Nil {
		return *a.PageId, nil
	}
	name := strings.TrimSpace(a.PageName)
	if name == "" {
		if allowLast && ec.LastPageId != nil {
			return *ec.LastPageId, nil
		}
		return uuid.Nil, fmt.Errorf("page: %w", errNoParent)
	}
	if id, ok := ec.createdPage(name); ok {
		return id, nil
	}
	id, ok, err := e.ops.ResolvePageId(ctx, userId, name)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("page %q: %w", name, tools.ErrNotFound)
	}
	return id, nil
}

func (e *Executor) resolveSection(ctx context.Context, userId uuid.UUID, a Action, ec *ExecutionContext, allowLast bool) (uuid.UUID, error) {
	if a.SectionId != nil && *a.SectionId != uuid.Nil {
		return *a.SectionId, nil
	}
	name := strings.TrimSpace(a.SectionName)
	if name == "" {
		if allowLast && ec.LastSectionId != nil {
			return *ec.LastSectionId, nil
		}
		return uuid.Nil, fmt.Errorf("section: %w", errNoParent)
	}
	// a page reference narrows created sections to that page
	var pageId *uuid.UUID
	if a.hasPageRef() {
		pid, err := e.resolvePage(ctx, userId, a, ec, false)
		if err != nil {
			return uuid.Nil, err
		}
		if id, ok := ec.createdSectionIn(pid, name); ok {
			return id, nil
		}
		pageId = &pid
	} else if id, ok := ec.createdSection(name); ok {
		return id, nil
	}

	id, ok, err := e.ops.ResolveSectionId(ctx, userId, name, pageId)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("section %q: %w", name, tools.ErrNotFound)
	}
	return id, nil
}
