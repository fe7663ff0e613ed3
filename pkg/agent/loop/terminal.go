package loop

import (
	"encoding/json"

	"ai-notetaking-agent/pkg/agent/plan"
)

type TerminalKind string

const (
	TerminalResponse      TerminalKind = "response"
	TerminalClarification TerminalKind = "clarification"
	TerminalConfirmation  TerminalKind = "confirmation"
	TerminalPlanProposal  TerminalKind = "plan_proposal"
	TerminalStepRevision  TerminalKind = "step_revision"
	TerminalError         TerminalKind = "error"
)

// FrontendAction is a UI instruction the model issued during the turn.
type FrontendAction struct {
	Type      string          `json:"type"`
	Arguments json.RawMessage `json:"arguments"`
}

// Terminal is the single payload a turn ends with. Kind selects the fields in use.
type Terminal struct {
	Kind         TerminalKind     `json:"type"`
	Message      string           `json:"message,omitempty"`
	Actions      []FrontendAction `json:"actions,omitempty"`
	Question     string           `json:"question,omitempty"`
	Options      []string         `json:"options,omitempty"`
	ConfirmValue string           `json:"confirmValue,omitempty"`
	Plan         *plan.Plan       `json:"plan,omitempty"`
	StepIndex    int              `json:"stepIndex,omitempty"`
	RevisedGroup *plan.Group      `json:"revisedGroup,omitempty"`

	// call that produced the terminal, kept for confirmation re-entry
	CallId    string `json:"-"`
	CallName  string `json:"-"`
	Arguments string `json:"-"`
}

// MarshalJSON always writes stepIndex on a step revision, including group 0.
func (t Terminal) MarshalJSON() ([]byte, error) {
	type wire Terminal
	out := struct {
		wire
		StepIndex *int `json:"stepIndex,omitempty"`
	}{wire: wire(t)}
	if t.Kind == TerminalStepRevision {
		index := t.StepIndex
		out.StepIndex = &index
	}
	return json.Marshal(out)
}

// Resume carries an unanswered clarification or confirmation into the next
// turn so the loop can replay it as a completed tool call.
type Resume struct {
	CallId    string `json:"callId"`
	CallName  string `json:"callName"`
	Arguments string `json:"arguments"`
}

// ResumeFrom returns the Resume for terminals that wait on the user.
func ResumeFrom(t *Terminal) *Resume {
	if t == nil || (t.Kind != TerminalConfirmation && t.Kind != TerminalClarification) {
		return nil
	}
	return &Resume{CallId: t.CallId, CallName: t.CallName, Arguments: t.Arguments}
}

type respondArgs struct {
	Message string `json:"message" validate:"required"`
}

type clarifyArgs struct {
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options,omitempty"`
}

type confirmArgs struct {
	Message      string `json:"message" validate:"required"`
	ConfirmValue string `json:"confirmValue" validate:"required"`
}

type proposeArgs struct {
	Summary string       `json:"summary" validate:"required"`
	Groups  []plan.Group `json:"groups"`
}

type reviseArgs struct {
	StepIndex    *int        `json:"stepIndex" validate:"required,gte=0"`
	RevisedGroup *plan.Group `json:"revisedGroup" validate:"required"`
}
