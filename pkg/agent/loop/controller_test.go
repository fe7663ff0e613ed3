package loop_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/agenttest"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/history"
	"ai-notetaking-agent/pkg/agent/loop"
	"ai-notetaking-agent/pkg/agent/plan"
	"ai-notetaking-agent/pkg/agent/tools"
	"ai-notetaking-agent/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store  *agenttest.MemoryStore
	llm    *agenttest.ScriptedLLM
	ctrl   *loop.Controller
	userId uuid.UUID
}

func newHarness(t *testing.T, cfg loop.Config, steps ...agenttest.Step) *harness {
	t.Helper()
	s := agenttest.NewMemoryStore()
	log := logger.NewNopLogger()
	registry := tools.NewRegistry(tools.Deps{
		Store:      s,
		Operations: tools.NewOperations(s, nil, log),
		Bulk:       bulk.NewEngine(s, log),
		Logger:     log,
	})
	model := agenttest.NewScriptedLLM(steps...)
	return &harness{store: s, llm: model, ctrl: loop.NewController(model, registry, log, cfg), userId: uuid.New()}
}

func (h *harness) run(text string) *loop.Outcome {
	return h.ctrl.Run(context.Background(), loop.Input{UserId: h.userId, SystemPrompt: "system", UserText: text})
}

func toolMessages(req llm.ChatRequest) []llm.Message {
	var out []llm.Message
	for _, m := range req.Messages {
		if m.Role == llm.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func TestPlainTextEndsTurn(t *testing.T) {
	h := newHarness(t, loop.Config{}, agenttest.Text("You have no pages yet."))
	out := h.run("what do I have?")

	require.NoError(t, out.Err)
	assert.Equal(t, loop.TerminalResponse, out.Terminal.Kind)
	assert.Equal(t, "You have no pages yet.", out.Terminal.Message)
	assert.Equal(t, 1, out.Iterations)

	req := h.llm.Requests()[0]
	assert.Equal(t, llm.ToolChoiceAuto, req.ToolChoice)
	assert.NotEmpty(t, req.Tools)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "what do I have?", req.Messages[len(req.Messages)-1].Content)
}

func TestDataToolResultFeedsNextCall(t *testing.T) {
	h := newHarness(t, loop.Config{},
		agenttest.Calls(agenttest.Call("c1", "get_pages", nil)),
		agenttest.Calls(agenttest.Call("c2", "respond_to_user", map[string]string{"message": "You have 1 page."})),
	)
	h.store.SeedPage(h.userId, "Work")

	out := h.run("how many pages?")
	require.NoError(t, out.Err)
	assert.Equal(t, "You have 1 page.", out.Terminal.Message)
	assert.Equal(t, []string{"get_pages", "respond_to_user"}, out.ToolsUsed)
	assert.Equal(t, 2, out.Iterations)

	second := h.llm.Requests()[1]
	results := toolMessages(second)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.Contains(t, results[0].Content, `"Work"`)

	var assistant *llm.Message
	for i := range second.Messages {
		if second.Messages[i].Role == llm.RoleAssistant && len(second.Messages[i].ToolCalls) > 0 {
			assistant = &second.Messages[i]
		}
	}
	require.NotNil(t, assistant, "tool calls must be echoed before their results")
	assert.Equal(t, "get_pages", assistant.ToolCalls[0].Name)
}

func TestMaxIterations(t *testing.T) {
	h := newHarness(t, loop.Config{MaxIterations: 3}, agenttest.Calls(agenttest.Call("c", "get_pages", nil)))
	h.llm.Repeat = true

	out := h.run("loop forever")
	assert.ErrorIs(t, out.Err, loop.ErrMaxIterations)
	assert.Equal(t, loop.TerminalError, out.Terminal.Kind)
	assert.Equal(t, 3, out.Iterations)
	assert.Len(t, h.llm.Requests(), 3)
}

func TestMalformedTerminalIsReportedToModel(t *testing.T) {
	h := newHarness(t, loop.Config{},
		agenttest.Calls(agenttest.Call("bad", "respond_to_user", `{"message": "unterminated`)),
		agenttest.Calls(agenttest.Call("also-bad", "ask_clarification", `{}`)),
		agenttest.Calls(agenttest.Call("good", "ask_clarification", map[string]interface{}{
			"question": "Which page?", "options": []string{"Work", "Home"},
		})),
	)

	out := h.run("add a note")
	require.NoError(t, out.Err)
	assert.Equal(t, loop.TerminalClarification, out.Terminal.Kind)
	assert.Equal(t, "Which page?", out.Terminal.Question)
	assert.Equal(t, []string{"Work", "Home"}, out.Terminal.Options)
	assert.Equal(t, 3, out.Iterations)

	reqs := h.llm.Requests()
	first := toolMessages(reqs[1])
	require.Len(t, first, 1)
	assert.Equal(t, "bad", first[0].ToolCallID)
	assert.Contains(t, first[0].Content, `"kind":"invalid_arguments"`)

	second := toolMessages(reqs[2])
	require.Len(t, second, 2)
	assert.Equal(t, "also-bad", second[1].ToolCallID)
	assert.Contains(t, second[1].Content, "question")
}

func TestUnknownToolDoesNotAbortLoop(t *testing.T) {
	h := newHarness(t, loop.Config{},
		agenttest.Calls(agenttest.Call("x", "teleport_note", `{}`)),
		agenttest.Text("done"),
	)
	out := h.run("do something odd")
	require.NoError(t, out.Err)
	assert.Equal(t, "done", out.Terminal.Message)

	results := toolMessages(h.llm.Requests()[1])
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "unknown_tool")
}

func TestTerminalWinsOverDataToolsInSameBatch(t *testing.T) {
	h := newHarness(t, loop.Config{},
		agenttest.Calls(
			agenttest.Call("c1", "create_page", map[string]string{"name": "Ops"}),
			agenttest.Call("c2", "confirm_action", map[string]string{"message": "Delete 3 notes?", "confirmValue": "yes"}),
		),
	)
	out := h.run("delete the stale notes")
	require.NoError(t, out.Err)
	assert.Equal(t, loop.TerminalConfirmation, out.Terminal.Kind)
	assert.Equal(t, "yes", out.Terminal.ConfirmValue)
	assert.Empty(t, h.store.PageNames(h.userId))

	resume := loop.ResumeFrom(&out.Terminal)
	require.NotNil(t, resume)
	assert.Equal(t, "c2", resume.CallId)
	assert.Equal(t, "confirm_action", resume.CallName)
}

func TestFrontendActionsAccumulate(t *testing.T) {
	h := newHarness(t, loop.Config{},
		agenttest.Calls(
			agenttest.Call("n1", "navigate_to_page", map[string]string{"pageName": "Work"}),
			agenttest.Call("d1", "get_pages", nil),
		),
		agenttest.Calls(
			agenttest.Call("v1", "switch_view", map[string]string{"view": "board"}),
			agenttest.Call("r1", "respond_to_user", map[string]string{"message": "Showing Work as a board."}),
		),
	)
	out := h.run("show work as a board")
	require.NoError(t, out.Err)
	require.Len(t, out.Terminal.Actions, 2)
	assert.Equal(t, "navigate_to_page", out.Terminal.Actions[0].Type)
	assert.JSONEq(t, `{"pageName":"Work"}`, string(out.Terminal.Actions[0].Arguments))
	assert.Equal(t, "switch_view", out.Terminal.Actions[1].Type)

	results := toolMessages(h.llm.Requests()[1])
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Content, `"success":true`)
}

func TestConfirmationReentry(t *testing.T) {
	h := newHarness(t, loop.Config{}, agenttest.Text("Deleted 3 notes."))
	resume := &loop.Resume{CallId: "c9", CallName: "confirm_action", Arguments: `{"message":"Delete 3 notes?","confirmValue":"yes"}`}

	out := h.ctrl.Run(context.Background(), loop.Input{
		UserId:       h.userId,
		SystemPrompt: "system",
		History: []history.Message{
			{Role: history.RoleUser, Content: "delete the stale notes"},
			{Role: history.RoleAgent, Content: "Delete 3 notes?"},
		},
		UserText: "yes",
		Resume:   resume,
	})
	require.NoError(t, out.Err)

	msgs := h.llm.Requests()[0].Messages
	require.Len(t, msgs, 6)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)

	call := msgs[3]
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, "c9", call.ToolCalls[0].ID)
	assert.Equal(t, "confirm_action", call.ToolCalls[0].Name)

	result := msgs[4]
	assert.Equal(t, llm.RoleTool, result.Role)
	assert.Equal(t, "c9", result.ToolCallID)
	assert.JSONEq(t, `{"status":"confirmed","userResponse":"yes"}`, result.Content)
	assert.Equal(t, "yes", msgs[5].Content)
}

func TestLLMFailureIsTerminalError(t *testing.T) {
	h := newHarness(t, loop.Config{}, agenttest.Step{Err: errors.New("503 from upstream")})
	out := h.run("hello")
	assert.ErrorIs(t, out.Err, loop.ErrLLM)
	assert.Equal(t, loop.TerminalError, out.Terminal.Kind)
	assert.NotEmpty(t, out.Terminal.Message)
	assert.False(t, strings.Contains(out.Terminal.Message, "503"))
}

func TestLLMTimeout(t *testing.T) {
	h := newHarness(t, loop.Config{LLMTimeout: 20 * time.Millisecond}, agenttest.Step{Block: true})
	start := time.Now()
	out := h.run("hello")
	assert.ErrorIs(t, out.Err, loop.ErrLLM)
	assert.Equal(t, loop.TerminalError, out.Terminal.Kind)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProposePlanRequiresDependentGroups(t *testing.T) {
	flat := map[string]interface{}{
		"summary": "Create Launch",
		"groups": []map[string]interface{}{{
			"title": "All at once",
			"actions": []map[string]interface{}{
				{"type": "create_page", "name": "Launch"},
				{"type": "create_section", "name": "Goals", "pageName": "Launch"},
				{"type": "create_section", "name": "Tasks", "pageName": "Launch"},
			},
		}},
	}
	grouped := map[string]interface{}{
		"summary": "Create Launch",
		"groups": []map[string]interface{}{
			{"title": "Create page", "actions": []map[string]interface{}{{"type": "create_page", "name": "Launch"}}},
			{"title": "Add sections", "actions": []map[string]interface{}{
				{"type": "create_section", "name": "Goals", "pageName": "Launch"},
				{"type": "create_section", "name": "Tasks", "pageName": "Launch"},
			}},
		},
	}
	h := newHarness(t, loop.Config{},
		agenttest.Calls(agenttest.Call("p1", "propose_plan", flat)),
		agenttest.Calls(agenttest.Call("p2", "propose_plan", grouped)),
	)

	out := h.run("create page Launch with sections Goals, Tasks")
	require.NoError(t, out.Err)
	require.Equal(t, loop.TerminalPlanProposal, out.Terminal.Kind)
	p := out.Terminal.Plan
	require.Len(t, p.Groups, 2)
	assert.Equal(t, []plan.ActionType{plan.ActionCreatePage}, actionTypes(p.Groups[0]))
	assert.Equal(t, []plan.ActionType{plan.ActionCreateSection, plan.ActionCreateSection}, actionTypes(p.Groups[1]))
	for _, g := range p.Groups {
		assert.Equal(t, plan.StatusPending, g.Status)
		assert.NotEmpty(t, g.Id)
	}

	rejected := toolMessages(h.llm.Requests()[1])
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Content, `"kind":"validation"`)
	assert.Empty(t, h.store.PageNames(h.userId), "proposing a plan must not write anything")
}

func actionTypes(g plan.Group) []plan.ActionType {
	out := make([]plan.ActionType, len(g.Actions))
	for i, a := range g.Actions {
		out[i] = a.Type
	}
	return out
}

func TestRevisePlanStep(t *testing.T) {
	revision := map[string]interface{}{
		"stepIndex": 1,
		"revisedGroup": map[string]interface{}{
			"title":   "Add sections",
			"actions": []map[string]interface{}{{"type": "create_section", "name": "Risks", "pageName": "Launch"}},
		},
	}

	t.Run("without active plan", func(t *testing.T) {
		h := newHarness(t, loop.Config{},
			agenttest.Calls(agenttest.Call("r1", "revise_plan_step", revision)),
			agenttest.Text("There is no plan to revise."),
		)
		out := h.run("rename Goals to Risks")
		require.NoError(t, out.Err)
		assert.Equal(t, loop.TerminalResponse, out.Terminal.Kind)
		assert.Contains(t, toolMessages(h.llm.Requests()[1])[0].Content, "propose_plan")
	})

	t.Run("with active plan", func(t *testing.T) {
		h := newHarness(t, loop.Config{}, agenttest.Calls(agenttest.Call("r1", "revise_plan_step", revision)))
		active := &plan.Plan{Summary: "Launch", Groups: []plan.Group{
			{Title: "Create page", Actions: []plan.Action{{Type: plan.ActionCreatePage, Name: "Launch"}}},
			{Title: "Add sections", Actions: []plan.Action{{Type: plan.ActionCreateSection, Name: "Goals", PageName: "Launch"}}},
		}}
		out := h.ctrl.Run(context.Background(), loop.Input{UserId: h.userId, SystemPrompt: "s", UserText: "use Risks instead", ActivePlan: active})
		require.NoError(t, out.Err)
		assert.Equal(t, loop.TerminalStepRevision, out.Terminal.Kind)
		assert.Equal(t, 1, out.Terminal.StepIndex)
		require.NotNil(t, out.Terminal.RevisedGroup)
		assert.Equal(t, "Risks", out.Terminal.RevisedGroup.Actions[0].Name)
	})

	t.Run("payload names group zero", func(t *testing.T) {
		term := loop.Terminal{
			Kind:         loop.TerminalStepRevision,
			StepIndex:    0,
			RevisedGroup: &plan.Group{Title: "Create page", Actions: []plan.Action{{Type: plan.ActionCreatePage, Name: "Launch v2"}}},
		}
		raw, err := json.Marshal(term)
		require.NoError(t, err)

		var wire map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &wire))
		assert.Equal(t, "step_revision", wire["type"])
		assert.Contains(t, wire, "stepIndex")
		assert.EqualValues(t, 0, wire["stepIndex"])
		assert.Contains(t, wire, "revisedGroup")

		var back loop.Terminal
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, 0, back.StepIndex)
		assert.Equal(t, "Launch v2", back.RevisedGroup.Actions[0].Name)

		raw, err = json.Marshal(loop.Terminal{Kind: loop.TerminalResponse, Message: "done"})
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "stepIndex")
	})

	t.Run("index out of range", func(t *testing.T) {
		bad := map[string]interface{}{"stepIndex": 5, "revisedGroup": revision["revisedGroup"]}
		h := newHarness(t, loop.Config{},
			agenttest.Calls(agenttest.Call("r1", "revise_plan_step", bad)),
			agenttest.Text("ok"),
		)
		active := &plan.Plan{Groups: []plan.Group{{Title: "x", Actions: []plan.Action{{Type: plan.ActionCreatePage, Name: "x"}}}}}
		out := h.ctrl.Run(context.Background(), loop.Input{UserId: h.userId, UserText: "x", ActivePlan: active})
		require.NoError(t, out.Err)
		assert.Contains(t, toolMessages(h.llm.Requests()[1])[0].Content, "out of range")
	})
}
