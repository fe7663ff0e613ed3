package prompt

import (
	"fmt"
	"strings"
	"time"

	"ai-notetaking-agent/pkg/agent/plan"
)

const personality = `You are Notefiber, an assistant that manages the user's notes by calling tools.
The database is a hierarchy: pages contain sections, sections contain notes. Notes carry tags, a completed flag and an optional date.
Be brief and friendly. Always finish a turn by calling exactly one of respond_to_user, ask_clarification, confirm_action, propose_plan or revise_plan_step.`

const rules = `1. LOOK BEFORE YOU WRITE
   - Use get_pages, get_sections, get_notes or search_notes to find ids before changing anything
   - Refer to existing pages and sections by id whenever you have one
   - Never invent ids

2. SINGLE CHANGES
   - One create, update or delete can be done directly with the matching tool
   - Then respond_to_user with what changed

3. BULK CHANGES
   - bulk_update_notes and bulk_delete_notes need a filter with at least one field
   - Before any bulk change or any delete of a page or section, call confirm_action with the count you found
   - After the user confirms, run the change and report affectedCount

4. MULTI-STEP WORK
   - When a request needs several dependent steps, call propose_plan
   - Split the plan into groups. Anything that builds inside a page or section created by the plan goes in a LATER group than the create
   - Example: "create page Launch with sections Goals, Tasks" is group 1 create_page Launch, group 2 two create_section actions with pageName Launch

5. AMBIGUITY
   - If a name matches nothing or the request is unclear, call ask_clarification with short options`

type Params struct {
	RAGContext string
	PlanMode   *PlanMode
	Now        time.Time
}

// PlanMode describes the plan under review so follow-ups can revise one step.
type PlanMode struct {
	Plan   *plan.Plan
	Cursor int
}

// Build assembles personality, behavior rules, retrieval context and plan-mode context.
func Build(p Params) string {
	var prompt strings.Builder

	prompt.WriteString("<personality>\n")
	prompt.WriteString(personality)
	prompt.WriteString("\n</personality>\n\n")

	prompt.WriteString("<rules>\n")
	prompt.WriteString(rules)
	prompt.WriteString("\n</rules>\n\n")

	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&prompt, "<today>%s</today>\n\n", now.Format("Monday, 2006-01-02"))

	if strings.TrimSpace(p.RAGContext) != "" {
		prompt.WriteString("<context>\n")
		prompt.WriteString(p.RAGContext)
		prompt.WriteString("\n</context>\n\n")
	}

	if p.PlanMode != nil && p.PlanMode.Plan != nil {
		writePlanMode(&prompt, p.PlanMode)
	}

	return prompt.String()
}

func writePlanMode(prompt *strings.Builder, pm *PlanMode) {
	prompt.WriteString("<plan_under_review>\n")
	fmt.Fprintf(prompt, "Summary: %s\n", pm.Plan.Summary)
	for i, g := range pm.Plan.Groups {
		marker := " "
		if i == pm.Cursor {
			marker = ">"
		}
		fmt.Fprintf(prompt, "%s Step %d [%s] %s (%d action(s))\n", marker, i, g.Status, g.Title, len(g.Actions))
		for _, a := range g.Actions {
			fmt.Fprintf(prompt, "    - %s\n", describeAction(a))
		}
	}
	prompt.WriteString("If the user asks to change a step, call revise_plan_step with that stepIndex and the full revised group.\n")
	prompt.WriteString("Do not call propose_plan again unless the user wants a completely different plan.\n")
	prompt.WriteString("</plan_under_review>\n\n")
}

func describeAction(a plan.Action) string {
	switch a.Type {
	case plan.ActionCreatePage:
		return fmt.Sprintf("create page %q", a.Name)
	case plan.ActionCreateSection:
		return fmt.Sprintf("create section %q in %s", a.Name, ref(a.PageName, a.PageId != nil))
	case plan.ActionCreateNote:
		return fmt.Sprintf("create note %q in %s", truncate(a.Content, 60), ref(a.SectionName, a.SectionId != nil))
	case plan.ActionDeletePage:
		return fmt.Sprintf("delete page %s", ref(a.PageName, a.PageId != nil))
	case plan.ActionDeleteSection:
		return fmt.Sprintf("delete section %s", ref(a.SectionName, a.SectionId != nil))
	case plan.ActionDeleteNotes:
		return "delete notes matching a filter"
	}
	return string(a.Type)
}

func ref(name string, hasId bool) string {
	if name != "" {
		return fmt.Sprintf("%q", name)
	}
	if hasId {
		return "(by id)"
	}
	return "(the one created last)"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
