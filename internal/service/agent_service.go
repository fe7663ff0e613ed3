package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-notetaking-agent/internal/config"
	"ai-notetaking-agent/internal/dto"
	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/internal/repository/memory"
	"ai-notetaking-agent/pkg/agent/history"
	"ai-notetaking-agent/pkg/agent/loop"
	"ai-notetaking-agent/pkg/agent/plan"
	"ai-notetaking-agent/pkg/agent/prompt"
	"ai-notetaking-agent/pkg/agent/session"
	"ai-notetaking-agent/pkg/agent/tools"
	"ai-notetaking-agent/pkg/events"
	"ai-notetaking-agent/pkg/rag/assembler"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// metadata keys on persisted agent messages
const (
	metaToolsUsed     = "toolsUsed"
	metaActions       = "actions"
	metaOptions       = "options"
	metaConfirmValue  = "confirmValue"
	metaPlan          = "plan"
	metaPlanStatus    = "planStatus"
	metaGroupStatuses = "groupStatuses"
	metaStepIndex     = "stepIndex"
	metaResume        = "resume"
	metaReport        = "report"
)

// planSuperseded marks a proposal replaced by a newer proposal or revision.
const planSuperseded = "superseded"

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type MessageEmbedder interface {
	MessageSaved(ctx context.Context, userId, messageId uuid.UUID)
}

type IAgentService interface {
	SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendAgentMessageRequest) (*dto.AgentTurnResponse, error)
	GetPlan(ctx context.Context, userId, sessionId uuid.UUID) (*dto.PlanStateResponse, error)
	ApproveGroup(ctx context.Context, userId, sessionId uuid.UUID, index int) (*dto.PlanStateResponse, error)
	SkipGroup(ctx context.Context, userId, sessionId uuid.UUID, index int) (*dto.PlanStateResponse, error)
	ExecutePlan(ctx context.Context, userId, sessionId uuid.UUID) (*dto.PlanExecutionResponse, error)
	CancelPlan(ctx context.Context, userId, sessionId uuid.UUID) (*dto.PlanStateResponse, error)
	GetHistory(ctx context.Context, userId, sessionId uuid.UUID, limit int) (*dto.AgentHistoryResponse, error)
}

type AgentServiceDeps struct {
	Sessions   *memory.SessionRepository
	Queue      *session.Queue
	Messages   MessageLog
	Assembler  *assembler.Assembler
	Controller *loop.Controller
	Executor   *plan.Executor
	Embeds     MessageEmbedder   // optional
	Profiles   IPublisherService // optional
	Events     EventPublisher    // optional
	Config     config.AgentConfig
	Logger     logger.ILogger
}

type agentService struct {
	sessions   *memory.SessionRepository
	queue      *session.Queue
	messages   MessageLog
	assembler  *assembler.Assembler
	controller *loop.Controller
	executor   *plan.Executor
	embeds     MessageEmbedder
	profiles   IPublisherService
	events     EventPublisher
	cfg        config.AgentConfig
	logger     logger.ILogger
}

func NewAgentService(d AgentServiceDeps) IAgentService {
	return &agentService{
		sessions:   d.Sessions,
		queue:      d.Queue,
		messages:   d.Messages,
		assembler:  d.Assembler,
		controller: d.Controller,
		executor:   d.Executor,
		embeds:     d.Embeds,
		profiles:   d.Profiles,
		events:     d.Events,
		cfg:        d.Config,
		logger:     d.Logger,
	}
}

// SendMessage runs one turn. Turns of the same session are queued behind each other.
func (s *agentService) SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendAgentMessageRequest) (*dto.AgentTurnResponse, error) {
	sessionId := uuid.New()
	if req.SessionId != nil && *req.SessionId != uuid.Nil {
		sessionId = *req.SessionId
	}

	var res *dto.AgentTurnResponse
	err := s.withSession(ctx, userId, sessionId, func(ctx context.Context, sess *session.Session) error {
		res = s.runTurn(ctx, sess, req.Message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *agentService) runTurn(ctx context.Context, sess *session.Session, text string) *dto.AgentTurnResponse {
	userId := sess.UserId
	rag := s.assembler.Assemble(ctx, text, userId)

	params := prompt.Params{RAGContext: rag.String()}
	var active *plan.Plan
	if tag, p, cursor := sess.Plan.Snapshot(); tag == plan.TagReviewing {
		params.PlanMode = &prompt.PlanMode{Plan: p, Cursor: cursor}
		active = p
	}

	recent := sess.History.Recent(s.cfg.HistoryWindow)
	resume := sess.TakePending()

	out := s.controller.Run(ctx, loop.Input{
		UserId:       userId,
		SystemPrompt: prompt.Build(params),
		History:      recent,
		UserText:     text,
		Resume:       resume,
		ActivePlan:   active,
	})
	term := s.applyTerminal(sess, out)

	if resume != nil {
		s.markAnswered(ctx, sess)
	}

	sent := sess.History.Append(history.Message{
		Role:    history.RoleUser,
		Kind:    history.KindTextResponse,
		Content: text,
	})
	replyMsg := replyMessage(term, out.ToolsUsed)
	if term.Kind == loop.TerminalPlanProposal || term.Kind == loop.TerminalStepRevision {
		s.supersedePlanMessage(ctx, sess)
		annotatePlan(replyMsg.Metadata, sess.Plan)
	}
	reply := sess.History.Append(replyMsg)
	s.persist(ctx, sess, sent, reply)

	if sess.History.Compact() {
		s.logger.Info("AgentService", "History compacted", map[string]interface{}{
			"session_id": sess.SessionId.String(),
			"remaining":  sess.History.Len(),
		})
	}

	s.publish(ctx, events.New(events.TypeAgentTurnCompleted, userId, map[string]interface{}{
		"session_id": sess.SessionId.String(),
		"terminal":   string(term.Kind),
		"iterations": out.Iterations,
	}))
	s.observe(ctx, userId, term, out.ToolsUsed)

	res := &dto.AgentTurnResponse{
		SessionId:  sess.SessionId,
		Terminal:   term,
		ToolsUsed:  lo.Ternary(out.ToolsUsed == nil, []string{}, out.ToolsUsed),
		Iterations: out.Iterations,
		Sent:       toMessageResponse(sent),
		Reply:      toMessageResponse(reply),
	}
	if term.Kind == loop.TerminalPlanProposal || term.Kind == loop.TerminalStepRevision {
		res.PlanState = planState(sess)
	}
	return res
}

// applyTerminal moves session state according to the turn's terminal. A plan
// the machine refuses becomes an error terminal.
func (s *agentService) applyTerminal(sess *session.Session, out *loop.Outcome) loop.Terminal {
	term := out.Terminal
	var err error

	switch term.Kind {
	case loop.TerminalPlanProposal:
		err = sess.Plan.StartPlan(term.Plan)
	case loop.TerminalStepRevision:
		err = sess.Plan.ReviseGroup(term.StepIndex, *term.RevisedGroup)
	case loop.TerminalClarification, loop.TerminalConfirmation:
		sess.SetPending(loop.ResumeFrom(&term))
	case loop.TerminalError:
		if out.Err != nil {
			s.logger.Error("AgentService", "Turn ended in error", map[string]interface{}{
				"session_id": sess.SessionId.String(),
				"error":      out.Err.Error(),
			})
		}
	}

	if err != nil {
		s.logger.Warn("AgentService", "Plan transition rejected", map[string]interface{}{
			"session_id": sess.SessionId.String(),
			"terminal":   string(term.Kind),
			"error":      err.Error(),
		})
		return loop.Terminal{
			Kind:    loop.TerminalError,
			Message: fmt.Sprintf("I could not update the plan: %v", err),
			Actions: term.Actions,
		}
	}
	return term
}

func replyMessage(term loop.Terminal, toolsUsed []string) history.Message {
	meta := map[string]interface{}{}
	if len(toolsUsed) > 0 {
		meta[metaToolsUsed] = append([]string(nil), toolsUsed...)
	}
	if len(term.Actions) > 0 {
		meta[metaActions] = term.Actions
	}

	msg := history.Message{Role: history.RoleAgent, Metadata: meta}
	switch term.Kind {
	case loop.TerminalClarification:
		msg.Kind = history.KindClarification
		msg.Content = term.Question
		if len(term.Options) > 0 {
			meta[metaOptions] = term.Options
		}
		meta[metaResume] = loop.ResumeFrom(&term)
	case loop.TerminalConfirmation:
		msg.Kind = history.KindBulkConfirmation
		msg.Content = term.Message
		meta[metaConfirmValue] = term.ConfirmValue
		meta[metaResume] = loop.ResumeFrom(&term)
	case loop.TerminalPlanProposal:
		msg.Kind = history.KindPlanProposal
		msg.Content = term.Plan.Summary
	case loop.TerminalStepRevision:
		msg.Kind = history.KindPlanProposal
		msg.Content = fmt.Sprintf("Revised step %d: %s", term.StepIndex+1, term.RevisedGroup.Title)
		meta[metaStepIndex] = term.StepIndex
	case loop.TerminalError:
		msg.Kind = history.KindError
		msg.Content = term.Message
	default:
		msg.Kind = history.KindTextResponse
		msg.Content = term.Message
	}
	return msg
}

// markAnswered flags the question the user just answered.
func (s *agentService) markAnswered(ctx context.Context, sess *session.Session) {
	waiting, ok := sess.History.LastWhere(func(m history.Message) bool {
		return m.Role == history.RoleAgent && !m.Responded &&
			(m.Kind == history.KindClarification || m.Kind == history.KindBulkConfirmation)
	})
	if !ok {
		return
	}
	sess.History.Update(waiting.Id, func(m *history.Message) { m.Responded = true })
	s.syncMessage(ctx, sess, waiting.Id)
}

func (s *agentService) syncMessage(ctx context.Context, sess *session.Session, id uuid.UUID) {
	updated, ok := sess.History.LastWhere(func(m history.Message) bool { return m.Id == id })
	if !ok {
		return
	}
	if err := s.messages.Update(ctx, sess.UserId, updated); err != nil {
		s.logger.Warn("AgentService", "Failed to update stored message", map[string]interface{}{
			"message_id": id.String(),
			"error":      err.Error(),
		})
	}
}

// persist stores messages and queues their embeddings. The in-memory history
// stays authoritative for the session when storage fails.
func (s *agentService) persist(ctx context.Context, sess *session.Session, msgs ...history.Message) {
	if err := s.messages.Append(ctx, sess.UserId, sess.SessionId, msgs...); err != nil {
		s.logger.Error("AgentService", "Failed to persist messages", map[string]interface{}{
			"session_id": sess.SessionId.String(),
			"error":      err.Error(),
		})
		return
	}
	if s.embeds == nil {
		return
	}
	for _, m := range msgs {
		s.embeds.MessageSaved(ctx, sess.UserId, m.Id)
	}
}

func (s *agentService) publish(ctx context.Context, evt events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("AgentService", "Failed to publish event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}

func (s *agentService) GetPlan(ctx context.Context, userId, sessionId uuid.UUID) (*dto.PlanStateResponse, error) {
	var res *dto.PlanStateResponse
	err := s.withSession(ctx, userId, sessionId, func(ctx context.Context, sess *session.Session) error {
		res = planState(sess)
		return nil
	})
	return res, err
}

func (s *agentService) ApproveGroup(ctx context.Context, userId, sessionId uuid.UUID, index int) (*dto.PlanStateResponse, error) {
	return s.decide(ctx, userId, sessionId, func(m *plan.Machine) error { return m.Approve(index) })
}

func (s *agentService) SkipGroup(ctx context.Context, userId, sessionId uuid.UUID, index int) (*dto.PlanStateResponse, error) {
	return s.decide(ctx, userId, sessionId, func(m *plan.Machine) error { return m.Skip(index) })
}

func (s *agentService) CancelPlan(ctx context.Context, userId, sessionId uuid.UUID) (*dto.PlanStateResponse, error) {
	return s.decide(ctx, userId, sessionId, func(m *plan.Machine) error { return m.Cancel() })
}

func (s *agentService) decide(ctx context.Context, userId, sessionId uuid.UUID, fn func(*plan.Machine) error) (*dto.PlanStateResponse, error) {
	var res *dto.PlanStateResponse
	err := s.withSession(ctx, userId, sessionId, func(ctx context.Context, sess *session.Session) error {
		if err := fn(sess.Plan); err != nil {
			return err
		}
		s.syncPlanMessage(ctx, sess, false)
		res = planState(sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExecutePlan commits the approved groups. The run is not tied to the
// caller's context: once started it goes to completion or first failure.
func (s *agentService) ExecutePlan(ctx context.Context, userId, sessionId uuid.UUID) (*dto.PlanExecutionResponse, error) {
	var res *dto.PlanExecutionResponse
	err := s.withSession(ctx, userId, sessionId, func(ctx context.Context, sess *session.Session) error {
		p, ec, err := sess.Plan.BeginExecution()
		if err != nil {
			return err
		}

		runCtx := context.WithoutCancel(ctx)
		report := s.executor.Execute(runCtx, userId, p, ec)
		tag, err := sess.Plan.Finish(report)
		if err != nil {
			return err
		}

		reply := sess.History.Append(history.Message{
			Role:     history.RoleAgent,
			Kind:     lo.Ternary(report.Halted, history.KindError, history.KindTextResponse),
			Content:  report.Summary(),
			Metadata: map[string]interface{}{metaReport: report},
		})
		s.persist(runCtx, sess, reply)
		s.syncPlanMessage(runCtx, sess, true)

		s.publish(runCtx, events.New(events.TypePlanExecuted, userId, map[string]interface{}{
			"session_id":        sessionId.String(),
			"completed_actions": report.CompletedActions,
			"halted":            report.Halted,
			"not_attempted":     report.NotAttempted,
			"state":             string(tag),
		}))

		res = &dto.PlanExecutionResponse{
			SessionId: sessionId,
			State:     tag,
			Report:    report,
			Summary:   report.Summary(),
			Reply:     toMessageResponse(reply),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// syncPlanMessage mirrors the machine onto the newest plan message. When
// compaction has dropped it from memory the stored copy is updated directly.
func (s *agentService) syncPlanMessage(ctx context.Context, sess *session.Session, responded bool) {
	proposal, ok := sess.History.LastWhere(func(m history.Message) bool {
		return m.Kind == history.KindPlanProposal && m.Metadata[metaPlan] != nil
	})
	if !ok {
		s.syncStoredPlanMessage(ctx, sess, responded)
		return
	}

	sess.History.Update(proposal.Id, func(m *history.Message) {
		if m.Metadata == nil {
			m.Metadata = map[string]interface{}{}
		}
		annotatePlan(m.Metadata, sess.Plan)
		if responded {
			m.Responded = true
		}
	})
	s.syncMessage(ctx, sess, proposal.Id)
}

func (s *agentService) syncStoredPlanMessage(ctx context.Context, sess *session.Session, responded bool) {
	stored, err := s.messages.LatestPlan(ctx, sess.UserId, sess.SessionId)
	if err != nil || stored == nil {
		return
	}
	if stored.Metadata == nil {
		stored.Metadata = map[string]interface{}{}
	}
	annotatePlan(stored.Metadata, sess.Plan)
	stored.Responded = stored.Responded || responded
	if err := s.messages.Update(ctx, sess.UserId, *stored); err != nil {
		s.logger.Warn("AgentService", "Failed to update stored plan", map[string]interface{}{
			"session_id": sess.SessionId.String(),
			"error":      err.Error(),
		})
	}
}

// supersedePlanMessage retires the plan message still under review before a
// newer proposal or revision is appended.
func (s *agentService) supersedePlanMessage(ctx context.Context, sess *session.Session) {
	prev, ok := sess.History.LastWhere(func(m history.Message) bool {
		return m.Kind == history.KindPlanProposal && m.Metadata[metaPlanStatus] == string(plan.TagReviewing)
	})
	if !ok {
		return
	}
	sess.History.Update(prev.Id, func(m *history.Message) {
		m.Metadata[metaPlanStatus] = planSuperseded
	})
	s.syncMessage(ctx, sess, prev.Id)
}

// annotatePlan writes the machine's state, plan and group statuses into meta.
func annotatePlan(meta map[string]interface{}, m *plan.Machine) {
	tag, p, _ := m.Snapshot()
	meta[metaPlanStatus] = string(tag)
	if p != nil {
		meta[metaPlan] = p
		meta[metaGroupStatuses] = lo.Map(p.Groups, func(g plan.Group, _ int) string { return string(g.Status) })
	}
}

func (s *agentService) GetHistory(ctx context.Context, userId, sessionId uuid.UUID, limit int) (*dto.AgentHistoryResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	var res *dto.AgentHistoryResponse
	err := s.withSession(ctx, userId, sessionId, func(ctx context.Context, sess *session.Session) error {
		msgs := sess.History.Recent(limit)
		res = &dto.AgentHistoryResponse{
			SessionId: sessionId,
			Messages: lo.Map(msgs, func(m history.Message, _ int) *dto.AgentMessageResponse {
				return toMessageResponse(m)
			}),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *agentService) withSession(ctx context.Context, userId, sessionId uuid.UUID, fn func(context.Context, *session.Session) error) error {
	return s.queue.Do(ctx, session.Key(userId, sessionId), func(ctx context.Context) error {
		return fn(ctx, s.loadSession(ctx, userId, sessionId))
	})
}

// loadSession returns the cached session, rebuilding its recent history
// from storage the first time it is seen by this instance.
func (s *agentService) loadSession(ctx context.Context, userId, sessionId uuid.UUID) *session.Session {
	sess := s.sessions.GetOrCreate(session.Key(userId, sessionId), func() *session.Session {
		return session.New(userId, sessionId, s.cfg.CompactionThreshold, s.cfg.CompactionTail)
	})
	if !sess.MarkLoaded() {
		return sess
	}

	msgs, err := s.messages.Recent(ctx, userId, sessionId, s.cfg.CompactionTail)
	if err != nil {
		s.logger.Warn("AgentService", "Failed to restore session history", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return sess
	}
	sess.History.Restore(msgs)
	if r := pendingResume(msgs); r != nil {
		sess.SetPending(r)
	}
	s.restorePlan(ctx, sess)
	return sess
}

// restorePlan puts a plan that was still under review back into the machine,
// with the group decisions made so far.
func (s *agentService) restorePlan(ctx context.Context, sess *session.Session) {
	stored, err := s.messages.LatestPlan(ctx, sess.UserId, sess.SessionId)
	if err != nil {
		s.logger.Warn("AgentService", "Failed to load stored plan", map[string]interface{}{
			"session_id": sess.SessionId.String(),
			"error":      err.Error(),
		})
		return
	}
	if stored == nil {
		return
	}
	p, statuses, ok := reviewingPlan(stored.Metadata)
	if !ok {
		return
	}
	if err := sess.Plan.StartPlan(p); err != nil {
		s.logger.Warn("AgentService", "Stored plan rejected", map[string]interface{}{
			"session_id": sess.SessionId.String(),
			"error":      err.Error(),
		})
		return
	}
	for i, status := range statuses {
		switch status {
		case plan.StatusApproved:
			err = sess.Plan.Approve(i)
		case plan.StatusSkipped:
			err = sess.Plan.Skip(i)
		}
		if err != nil {
			return
		}
	}
}

// reviewingPlan decodes the plan of a message whose plan is still under review.
// Metadata is either live values or JSON-decoded maps from storage.
func reviewingPlan(meta map[string]interface{}) (*plan.Plan, []plan.GroupStatus, bool) {
	if status, _ := meta[metaPlanStatus].(string); status != string(plan.TagReviewing) {
		return nil, nil, false
	}
	raw, err := json.Marshal(meta[metaPlan])
	if err != nil {
		return nil, nil, false
	}
	p := &plan.Plan{}
	if err := json.Unmarshal(raw, p); err != nil || len(p.Groups) == 0 {
		return nil, nil, false
	}

	statuses := lo.Map(p.Groups, func(g plan.Group, _ int) plan.GroupStatus { return g.Status })
	if stored := stringList(meta[metaGroupStatuses]); len(stored) == len(p.Groups) {
		statuses = lo.Map(stored, func(st string, _ int) plan.GroupStatus { return plan.GroupStatus(st) })
	}
	return p, statuses, true
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		return lo.FilterMap(list, func(item interface{}, _ int) (string, bool) {
			str, ok := item.(string)
			return str, ok
		})
	}
	return nil
}

// pendingResume recovers an unanswered question from the last stored reply.
func pendingResume(msgs []history.Message) *loop.Resume {
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]
	if last.Role != history.RoleAgent || last.Responded {
		return nil
	}
	raw, ok := last.Metadata[metaResume].(map[string]interface{})
	if !ok {
		return nil
	}
	r := &loop.Resume{}
	r.CallId, _ = raw["callId"].(string)
	r.CallName, _ = raw["callName"].(string)
	r.Arguments, _ = raw["arguments"].(string)
	if r.CallId == "" || r.CallName == "" {
		return nil
	}
	return r
}

func (s *agentService) observe(ctx context.Context, userId uuid.UUID, term loop.Terminal, toolsUsed []string) {
	if s.profiles == nil {
		return
	}
	obs := dto.ProfileObservationMessage{
		UserId:       userId,
		Terminal:     string(term.Kind),
		ToolsUsed:    toolsUsed,
		PlanProposed: term.Kind == loop.TerminalPlanProposal,
		BulkCalls: lo.CountBy(toolsUsed, func(name string) bool {
			return name == string(tools.BulkUpdateNotes) || name == string(tools.BulkDeleteNotes)
		}),
		ObservedAt: time.Now(),
	}
	// the profile is advisory; a lost observation is only logged
	if err := publishJSON(ctx, s.profiles, obs); err != nil {
		s.logger.Warn("AgentService", "Failed to queue profile observation", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}
}

func planState(sess *session.Session) *dto.PlanStateResponse {
	tag, p, cursor := sess.Plan.Snapshot()
	return &dto.PlanStateResponse{
		SessionId: sess.SessionId,
		State:     tag,
		Plan:      p,
		Cursor:    cursor,
	}
}

func toMessageResponse(m history.Message) *dto.AgentMessageResponse {
	return &dto.AgentMessageResponse{
		Id:        m.Id,
		Role:      string(m.Role),
		Kind:      string(m.Kind),
		Content:   m.Content,
		Responded: m.Responded,
		Metadata:  m.Metadata,
		CreatedAt: m.Timestamp,
	}
}
