package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-notetaking-agent/internal/config"
	"ai-notetaking-agent/internal/dto"
	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/internal/repository/memory"
	"ai-notetaking-agent/internal/service"
	"ai-notetaking-agent/pkg/agent/agenttest"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/history"
	"ai-notetaking-agent/pkg/agent/loop"
	"ai-notetaking-agent/pkg/agent/plan"
	"ai-notetaking-agent/pkg/agent/session"
	"ai-notetaking-agent/pkg/agent/tools"
	"ai-notetaking-agent/pkg/events"
	"ai-notetaking-agent/pkg/llm"
	"ai-notetaking-agent/pkg/rag/assembler"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLog struct {
	mu      sync.Mutex
	rows    map[uuid.UUID][]history.Message
	updates []history.Message
}

func newMemLog() *memLog {
	return &memLog{rows: map[uuid.UUID][]history.Message{}}
}

// stored mimics the JSON metadata column: values come back as decoded maps.
func stored(m history.Message) history.Message {
	if m.Metadata == nil {
		return m
	}
	raw, err := json.Marshal(m.Metadata)
	if err != nil {
		panic(err)
	}
	m.Metadata = map[string]interface{}{}
	if err := json.Unmarshal(raw, &m.Metadata); err != nil {
		panic(err)
	}
	return m
}

func (l *memLog) Append(_ context.Context, _, sessionId uuid.UUID, msgs ...history.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range msgs {
		l.rows[sessionId] = append(l.rows[sessionId], stored(m))
	}
	return nil
}

func (l *memLog) Recent(_ context.Context, _, sessionId uuid.UUID, limit int) ([]history.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows := l.rows[sessionId]
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return append([]history.Message(nil), rows...), nil
}

func (l *memLog) Update(_ context.Context, _ uuid.UUID, msg history.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, msg)
	for sid, rows := range l.rows {
		for i := range rows {
			if rows[i].Id == msg.Id {
				l.rows[sid][i] = stored(msg)
			}
		}
	}
	return nil
}

func (l *memLog) LatestPlan(_ context.Context, _, sessionId uuid.UUID) (*history.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows := l.rows[sessionId]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Kind == history.KindPlanProposal {
			m := stored(rows[i])
			return &m, nil
		}
	}
	return nil, nil
}

func (l *memLog) count(sessionId uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows[sessionId])
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.events, func(e events.Event, _ int) string { return e.EventType() })
}

type jobRecorder struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *jobRecorder) Publish(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *jobRecorder) embedJobs(t *testing.T) []dto.PublishEmbedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []dto.PublishEmbedMessage
	for _, p := range r.payloads {
		var job dto.PublishEmbedMessage
		require.NoError(t, json.Unmarshal(p, &job))
		jobs = append(jobs, job)
	}
	return jobs
}

type fixture struct {
	svc      service.IAgentService
	store    *agenttest.MemoryStore
	llm      *agenttest.ScriptedLLM
	log      *memLog
	events   *eventRecorder
	embeds   *jobRecorder
	profiles *jobRecorder
	cfg      config.AgentConfig
	userId   uuid.UUID
}

func newFixture(t *testing.T, steps ...agenttest.Step) *fixture {
	return newFixtureWithConfig(t, config.AgentConfig{
		HistoryWindow:       10,
		CompactionThreshold: 40,
		CompactionTail:      20,
	}, steps...)
}

func newFixtureWithConfig(t *testing.T, cfg config.AgentConfig, steps ...agenttest.Step) *fixture {
	t.Helper()
	f := &fixture{
		store:    agenttest.NewMemoryStore(),
		llm:      agenttest.NewScriptedLLM(steps...),
		log:      newMemLog(),
		events:   &eventRecorder{},
		embeds:   &jobRecorder{},
		profiles: &jobRecorder{},
		cfg:      cfg,
		userId:   uuid.New(),
	}
	f.svc = f.newService(t)
	return f
}

// newService builds another service over the fixture's store, log and model
// with an empty session cache, like a second instance or a restart.
func (f *fixture) newService(t *testing.T) service.IAgentService {
	t.Helper()
	nop := logger.NewNopLogger()

	notifier := service.NewEmbedNotifier(f.embeds, nop)
	engine := bulk.NewEngine(f.store, nop)
	ops := tools.NewOperations(f.store, notifier, nop)
	registry := tools.NewRegistry(tools.Deps{Store: f.store, Operations: ops, Bulk: engine, Logger: nop})

	queue := session.NewQueue()
	t.Cleanup(queue.Close)

	return service.NewAgentService(service.AgentServiceDeps{
		Sessions:   memory.NewSessionRepository(time.Hour),
		Queue:      queue,
		Messages:   f.log,
		Assembler:  assembler.New(f.store, nil, nop, assembler.Config{}),
		Controller: loop.NewController(f.llm, registry, nop, loop.Config{MaxIterations: 5}),
		Executor:   plan.NewExecutor(ops, engine, nop),
		Embeds:     notifier,
		Profiles:   f.profiles,
		Events:     f.events,
		Config:     f.cfg,
		Logger:     nop,
	})
}

func (f *fixture) send(t *testing.T, sessionId *uuid.UUID, text string) *dto.AgentTurnResponse {
	t.Helper()
	res, err := f.svc.SendMessage(context.Background(), f.userId, &dto.SendAgentMessageRequest{SessionId: sessionId, Message: text})
	require.NoError(t, err)
	return res
}

func launchPlan() map[string]interface{} {
	return map[string]interface{}{
		"summary": "Create Launch with two sections",
		"groups": []map[string]interface{}{
			{"title": "Create page", "actions": []map[string]interface{}{{"type": "create_page", "name": "Launch"}}},
			{"title": "Add sections", "actions": []map[string]interface{}{
				{"type": "create_section", "name": "Goals", "pageName": "Launch"},
				{"type": "create_section", "name": "Tasks", "pageName": "Launch"},
			}},
		},
	}
}

func TestSendMessagePlainResponse(t *testing.T) {
	f := newFixture(t, agenttest.Text("You have no pages yet."))

	res := f.send(t, nil, "what do I have?")

	assert.NotEqual(t, uuid.Nil, res.SessionId)
	assert.Equal(t, loop.TerminalResponse, res.Terminal.Kind)
	assert.Equal(t, "user", res.Sent.Role)
	assert.Equal(t, "agent", res.Reply.Role)
	assert.Equal(t, string(history.KindTextResponse), res.Reply.Kind)
	assert.Equal(t, "You have no pages yet.", res.Reply.Content)
	assert.Equal(t, []string{}, res.ToolsUsed)
	assert.Nil(t, res.PlanState)

	assert.Equal(t, 2, f.log.count(res.SessionId))
	jobs := f.embeds.embedJobs(t)
	require.Len(t, jobs, 2)
	assert.Equal(t, dto.EmbedKindMessage, jobs[0].Kind)
	assert.Equal(t, res.Sent.Id, jobs[0].Id)
	assert.Equal(t, res.Reply.Id, jobs[1].Id)

	assert.Equal(t, []string{events.TypeAgentTurnCompleted}, f.events.types())
	require.Len(t, f.profiles.payloads, 1)
	var obs dto.ProfileObservationMessage
	require.NoError(t, json.Unmarshal(f.profiles.payloads[0], &obs))
	assert.Equal(t, f.userId, obs.UserId)
	assert.Equal(t, "response", obs.Terminal)
}

func TestSecondTurnSeesFirstTurnInHistory(t *testing.T) {
	f := newFixture(t, agenttest.Text("Hi."), agenttest.Text("Still here."))

	first := f.send(t, nil, "hello")
	f.send(t, &first.SessionId, "are you there?")

	req := f.llm.Requests()[1]
	contents := lo.Map(req.Messages, func(m llm.Message, _ int) string { return m.Content })
	assert.Contains(t, contents, "hello")
	assert.Contains(t, contents, "Hi.")
	assert.Equal(t, "are you there?", contents[len(contents)-1])
}

func TestPlanReviewAndExecution(t *testing.T) {
	f := newFixture(t, agenttest.Calls(agenttest.Call("p1", "propose_plan", launchPlan())))
	ctx := context.Background()

	res := f.send(t, nil, "create page Launch with sections Goals, Tasks")
	require.Equal(t, loop.TerminalPlanProposal, res.Terminal.Kind)
	require.NotNil(t, res.PlanState)
	assert.Equal(t, plan.TagReviewing, res.PlanState.State)
	assert.Equal(t, string(history.KindPlanProposal), res.Reply.Kind)
	sid := res.SessionId

	_, err := f.svc.ExecutePlan(ctx, f.userId, sid)
	assert.ErrorIs(t, err, plan.ErrNoApprovedGroups)

	_, err = f.svc.ApproveGroup(ctx, f.userId, sid, 5)
	assert.ErrorIs(t, err, plan.ErrGroupOutOfRange)

	state, err := f.svc.ApproveGroup(ctx, f.userId, sid, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Cursor)
	state, err = f.svc.ApproveGroup(ctx, f.userId, sid, 1)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusApproved, state.Plan.Groups[1].Status)

	out, err := f.svc.ExecutePlan(ctx, f.userId, sid)
	require.NoError(t, err)
	assert.Equal(t, plan.TagComplete, out.State)
	assert.False(t, out.Report.Halted)
	assert.Equal(t, 3, out.Report.CompletedActions)
	assert.Equal(t, []string{"Launch"}, f.store.PageNames(f.userId))
	assert.Contains(t, f.events.types(), events.TypePlanExecuted)

	// the proposal in the log mirrors the final state
	hist, err := f.svc.GetHistory(ctx, f.userId, sid, 10)
	require.NoError(t, err)
	proposal, ok := lo.Find(hist.Messages, func(m *dto.AgentMessageResponse) bool {
		return m.Kind == string(history.KindPlanProposal)
	})
	require.True(t, ok)
	assert.True(t, proposal.Responded)
	assert.Equal(t, string(plan.TagComplete), proposal.Metadata["planStatus"])
	assert.Equal(t, []string{"approved", "approved"}, proposal.Metadata["groupStatuses"])
	assert.Equal(t, out.Summary, hist.Messages[len(hist.Messages)-1].Content)
}

func TestCancelPlan(t *testing.T) {
	f := newFixture(t, agenttest.Calls(agenttest.Call("p1", "propose_plan", launchPlan())))
	ctx := context.Background()

	res := f.send(t, nil, "create page Launch with sections Goals, Tasks")
	state, err := f.svc.CancelPlan(ctx, f.userId, res.SessionId)
	require.NoError(t, err)
	assert.Equal(t, plan.TagIdle, state.State)
	assert.Nil(t, state.Plan)

	_, err = f.svc.ApproveGroup(ctx, f.userId, res.SessionId, 0)
	assert.ErrorIs(t, err, plan.ErrInvalidTransition)
	assert.Empty(t, f.store.PageNames(f.userId))
}

func TestConfirmationResumesNextTurn(t *testing.T) {
	f := newFixture(t,
		agenttest.Calls(agenttest.Call("c1", "confirm_action", map[string]string{"message": "Delete 3 notes?", "confirmValue": "yes"})),
		agenttest.Text("Done."),
	)

	first := f.send(t, nil, "delete my done notes")
	require.Equal(t, loop.TerminalConfirmation, first.Terminal.Kind)
	assert.Equal(t, string(history.KindBulkConfirmation), first.Reply.Kind)

	f.send(t, &first.SessionId, "yes")

	replayed := lo.Filter(f.llm.Requests()[1].Messages, func(m llm.Message, _ int) bool {
		return m.Role == llm.RoleTool && m.ToolCallID == "c1"
	})
	require.Len(t, replayed, 1)
	assert.Contains(t, replayed[0].Content, "confirmed")

	require.NotEmpty(t, f.log.updates)
	assert.Equal(t, first.Reply.Id, f.log.updates[0].Id)
	assert.True(t, f.log.updates[0].Responded)
}

func TestSessionRebuiltFromStoredMessages(t *testing.T) {
	f := newFixture(t, agenttest.Text("Added to Work."))
	sid := uuid.New()

	// stored rows come back with JSON-decoded metadata
	require.NoError(t, f.log.Append(context.Background(), f.userId, sid,
		history.Message{Id: uuid.New(), Role: history.RoleUser, Kind: history.KindTextResponse, Content: "add a note"},
		history.Message{
			Id:      uuid.New(),
			Role:    history.RoleAgent,
			Kind:    history.KindClarification,
			Content: "Which page?",
			Metadata: map[string]interface{}{
				"resume": map[string]interface{}{
					"callId":    "q1",
					"callName":  "ask_clarification",
					"arguments": `{"question":"Which page?"}`,
				},
			},
		},
	))

	f.send(t, &sid, "Work")

	msgs := f.llm.Requests()[0].Messages
	contents := lo.Map(msgs, func(m llm.Message, _ int) string { return m.Content })
	assert.Contains(t, contents, "add a note")
	assert.Contains(t, contents, "Which page?")
	assert.True(t, lo.ContainsBy(msgs, func(m llm.Message) bool {
		return m.Role == llm.RoleTool && m.ToolCallID == "q1" && strings.Contains(m.Content, "Work")
	}))
}

func TestLLMFailureBecomesErrorReply(t *testing.T) {
	f := newFixture(t, agenttest.Step{Err: assert.AnError})

	res := f.send(t, nil, "hello")

	assert.Equal(t, loop.TerminalError, res.Terminal.Kind)
	assert.Equal(t, string(history.KindError), res.Reply.Kind)
	assert.Equal(t, 2, f.log.count(res.SessionId))
}

func TestPlanUnderReviewSurvivesSessionRebuild(t *testing.T) {
	f := newFixture(t, agenttest.Calls(agenttest.Call("p1", "propose_plan", launchPlan())))
	ctx := context.Background()

	res := f.send(t, nil, "create page Launch with sections Goals, Tasks")
	sid := res.SessionId
	_, err := f.svc.SkipGroup(ctx, f.userId, sid, 1)
	require.NoError(t, err)

	rebuilt := f.newService(t)

	state, err := rebuilt.GetPlan(ctx, f.userId, sid)
	require.NoError(t, err)
	assert.Equal(t, plan.TagReviewing, state.State)
	require.NotNil(t, state.Plan)
	require.Len(t, state.Plan.Groups, 2)
	assert.Equal(t, plan.StatusPending, state.Plan.Groups[0].Status)
	assert.Equal(t, plan.StatusSkipped, state.Plan.Groups[1].Status)
	assert.Equal(t, 0, state.Cursor)

	state, err = rebuilt.ApproveGroup(ctx, f.userId, sid, 0)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusApproved, state.Plan.Groups[0].Status)

	out, err := rebuilt.ExecutePlan(ctx, f.userId, sid)
	require.NoError(t, err)
	assert.Equal(t, plan.TagComplete, out.State)
	assert.Equal(t, 1, out.Report.CompletedActions)
	assert.Equal(t, []string{"Launch"}, f.store.PageNames(f.userId))
}

func TestFinishedPlanIsNotRestored(t *testing.T) {
	f := newFixture(t, agenttest.Calls(agenttest.Call("p1", "propose_plan", launchPlan())))
	ctx := context.Background()

	res := f.send(t, nil, "create page Launch with sections Goals, Tasks")
	_, err := f.svc.CancelPlan(ctx, f.userId, res.SessionId)
	require.NoError(t, err)

	state, err := f.newService(t).GetPlan(ctx, f.userId, res.SessionId)
	require.NoError(t, err)
	assert.Equal(t, plan.TagIdle, state.State)
	assert.Nil(t, state.Plan)
}

func TestRevisedPlanSurvivesSessionRebuild(t *testing.T) {
	revision := map[string]interface{}{
		"stepIndex": 0,
		"revisedGroup": map[string]interface{}{
			"title":   "Create page",
			"actions": []map[string]interface{}{{"type": "create_page", "name": "Launch v2"}},
		},
	}
	f := newFixture(t,
		agenttest.Calls(agenttest.Call("p1", "propose_plan", launchPlan())),
		agenttest.Calls(agenttest.Call("r1", "revise_plan_step", revision)),
	)
	ctx := context.Background()

	first := f.send(t, nil, "create page Launch with sections Goals, Tasks")
	second := f.send(t, &first.SessionId, "call the page Launch v2")
	require.Equal(t, loop.TerminalStepRevision, second.Terminal.Kind)
	assert.Equal(t, 0, second.Reply.Metadata["stepIndex"])

	state, err := f.newService(t).GetPlan(ctx, f.userId, first.SessionId)
	require.NoError(t, err)
	require.Equal(t, plan.TagReviewing, state.State)
	assert.Equal(t, "Launch v2", state.Plan.Groups[0].Actions[0].Name)
	assert.Equal(t, "Goals", state.Plan.Groups[1].Actions[0].Name)
}

func TestHistoryCompactedAfterTurnCrossesThreshold(t *testing.T) {
	f := newFixtureWithConfig(t, config.AgentConfig{
		HistoryWindow:       10,
		CompactionThreshold: 4,
		CompactionTail:      2,
	}, agenttest.Text("one"), agenttest.Text("two"), agenttest.Text("three"), agenttest.Text("four"))
	ctx := context.Background()

	first := f.send(t, nil, "first")
	sid := first.SessionId
	f.send(t, &sid, "second")

	hist, err := f.svc.GetHistory(ctx, f.userId, sid, 50)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 4)

	f.send(t, &sid, "third")

	hist, err = f.svc.GetHistory(ctx, f.userId, sid, 50)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 3)
	assert.Equal(t, string(history.KindSummary), hist.Messages[0].Kind)
	assert.Equal(t, "Previous 4 messages summarized", hist.Messages[0].Content)
	assert.Equal(t, "third", hist.Messages[1].Content)
	assert.Equal(t, "three", hist.Messages[2].Content)

	f.send(t, &sid, "fourth")

	hist, err = f.svc.GetHistory(ctx, f.userId, sid, 50)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 3)
	assert.Equal(t, "Previous 6 messages summarized", hist.Messages[0].Content)
	assert.Equal(t, []string{"fourth", "four"}, []string{hist.Messages[1].Content, hist.Messages[2].Content})

	// every turn is stored even though memory keeps only the tail
	assert.Equal(t, 8, f.log.count(sid))
}
