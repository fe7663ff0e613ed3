// Package loop drives one user turn: a bounded tool-calling conversation with
// the model that ends in exactly one terminal payload.
package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/history"
	"ai-notetaking-agent/pkg/agent/plan"
	"ai-notetaking-agent/pkg/agent/tools"
	"ai-notetaking-agent/pkg/llm"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrMaxIterations = errors.New("agent exceeded the maximum number of reasoning steps")
	ErrLLM           = errors.New("language model call failed")
)

type Config struct {
	MaxIterations int
	LLMTimeout    time.Duration
}

type Controller struct {
	llm      llm.LLMProvider
	registry *tools.Registry
	logger   logger.ILogger
	cfg      Config
	tracer   trace.Tracer
}

func NewController(provider llm.LLMProvider, registry *tools.Registry, log logger.ILogger, cfg Config) *Controller {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 60 * time.Second
	}
	return &Controller{
		llm:      provider,
		registry: registry,
		logger:   log,
		cfg:      cfg,
		tracer:   otel.Tracer("ai-notetaking-agent/loop"),
	}
}

type Input struct {
	UserId       uuid.UUID
	SystemPrompt string
	History      []history.Message // last N turns, oldest first
	UserText     string
	Resume       *Resume    // set when the previous turn waited on the user
	ActivePlan   *plan.Plan // plan under review, enables revise_plan_step
}

type Outcome struct {
	Terminal   Terminal
	ToolsUsed  []string
	Iterations int
	Err        error // cause behind a TerminalError
}

// Run is not reentrant per session; callers serialize turns.
func (c *Controller) Run(ctx context.Context, in Input) *Outcome {
	ctx, span := c.tracer.Start(ctx, "agent.turn")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", in.UserId.String()))

	messages := c.initialMessages(in)
	catalogue := c.registry.Catalogue()
	out := &Outcome{}
	var actions []FrontendAction

	for iteration := 1; iteration <= c.cfg.MaxIterations; iteration++ {
		out.Iterations = iteration

		resp, err := c.reason(ctx, iteration, messages, catalogue)
		if err != nil {
			c.logger.Error("AgentLoop", "LLM call failed", map[string]interface{}{
				"user_id":   in.UserId.String(),
				"iteration": iteration,
				"error":     err.Error(),
			})
			span.SetStatus(codes.Error, err.Error())
			return c.fail(out, fmt.Errorf("%w: %v", ErrLLM, err), actions)
		}

		if len(resp.ToolCalls) == 0 {
			out.Terminal = Terminal{Kind: TerminalResponse, Message: resp.Content, Actions: actions}
			return out
		}

		// Frontend actions are recorded for the whole batch, even when a terminal wins.
		for _, call := range resp.ToolCalls {
			if name, _ := tools.Classify(call.Name); name.IsFrontend() {
				actions = append(actions, FrontendAction{Type: call.Name, Arguments: rawArguments(call.Arguments)})
			}
		}

		terminalErrors := map[int]*tools.ToolError{}
		for i, call := range resp.ToolCalls {
			name, class := tools.Classify(call.Name)
			if class != tools.ClassTerminal {
				continue
			}
			out.ToolsUsed = append(out.ToolsUsed, call.Name)
			term, terr := c.parseTerminal(name, call, in.ActivePlan)
			if terr != nil {
				c.logger.Warn("AgentLoop", "Malformed terminal call", map[string]interface{}{
					"user_id": in.UserId.String(),
					"tool":    call.Name,
					"error":   terr.Message,
				})
				terminalErrors[i] = terr
				continue
			}
			term.Actions = actions
			out.Terminal = *term
			span.SetAttributes(attribute.String("terminal", string(term.Kind)))
			return out
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for i, call := range resp.ToolCalls {
			name, class := tools.Classify(call.Name)
			var result string
			switch class {
			case tools.ClassTerminal:
				result = tools.Fail(terminalErrors[i]).JSON()
			case tools.ClassFrontend:
				out.ToolsUsed = append(out.ToolsUsed, call.Name)
				result = fmt.Sprintf(`{"success":true,"action":%q,"note":"queued for the interface"}`, string(name))
			default:
				out.ToolsUsed = append(out.ToolsUsed, call.Name)
				result = c.dispatch(ctx, call, in.UserId).JSON()
			}
			messages = append(messages, llm.Message{Role: llm.RoleTool, Content: result, ToolCallID: call.ID})
		}
	}

	c.logger.Warn("AgentLoop", "Iteration limit reached", map[string]interface{}{
		"user_id":        in.UserId.String(),
		"max_iterations": c.cfg.MaxIterations,
	})
	span.SetStatus(codes.Error, ErrMaxIterations.Error())
	return c.fail(out, ErrMaxIterations, actions)
}

func (c *Controller) reason(ctx context.Context, iteration int, messages []llm.Message, catalogue []llm.ToolDefinition) (*llm.ChatResponse, error) {
	ctx, span := c.tracer.Start(ctx, "agent.reason")
	defer span.End()
	span.SetAttributes(attribute.Int("iteration", iteration), attribute.Int("messages", len(messages)))

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.LLMTimeout)
	defer cancel()
	return c.llm.Chat(callCtx, llm.ChatRequest{
		Messages:   messages,
		Tools:      catalogue,
		ToolChoice: llm.ToolChoiceAuto,
	})
}

func (c *Controller) dispatch(ctx context.Context, call llm.ToolCall, userId uuid.UUID) tools.Result {
	ctx, span := c.tracer.Start(ctx, "agent.tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool", call.Name))

	res := c.registry.Execute(ctx, call.Name, call.Arguments, userId)
	if res.Err != nil {
		span.SetAttributes(attribute.String("error_kind", string(res.Err.Kind)))
	}
	return res
}

func (c *Controller) fail(out *Outcome, err error, actions []FrontendAction) *Outcome {
	out.Err = err
	msg := "Sorry, I couldn't finish that request. Please try again."
	if errors.Is(err, ErrMaxIterations) {
		msg = "Sorry, that request took too many steps. Please try breaking it into smaller parts."
	}
	out.Terminal = Terminal{Kind: TerminalError, Message: msg, Actions: actions}
	return out
}

func (c *Controller) initialMessages(in Input) []llm.Message {
	messages := make([]llm.Message, 0, len(in.History)+4)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: in.SystemPrompt})
	for _, h := range in.History {
		switch h.Role {
		case history.RoleUser:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: h.Content})
		case history.RoleAgent:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: h.Content})
		default:
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: h.Content})
		}
	}

	if in.Resume != nil {
		// Replay the pending question as an answered tool call so the model
		// continues from it instead of restating the whole request.
		messages = append(messages,
			llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:        in.Resume.CallId,
					Name:      in.Resume.CallName,
					Arguments: in.Resume.Arguments,
				}},
			},
			llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: in.Resume.CallId,
				Content:    resumeResult(in.UserText),
			},
		)
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.UserText})
	return messages
}

func resumeResult(userText string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"status":       "confirmed",
		"userResponse": userText,
	})
	return string(raw)
}

func rawArguments(args string) json.RawMessage {
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	return json.RawMessage("{}")
}

func (c *Controller) parseTerminal(name tools.ToolName, call llm.ToolCall, active *plan.Plan) (*Terminal, *tools.ToolError) {
	v := c.registry.Validator()
	term := &Terminal{CallId: call.ID, CallName: call.Name, Arguments: call.Arguments}

	switch name {
	case tools.RespondToUser:
		args, terr := tools.DecodeArguments[respondArgs](v, call.Arguments)
		if terr != nil {
			return nil, terr
		}
		term.Kind = TerminalResponse
		term.Message = args.Message

	case tools.AskClarification:
		args, terr := tools.DecodeArguments[clarifyArgs](v, call.Arguments)
		if terr != nil {
			return nil, terr
		}
		term.Kind = TerminalClarification
		term.Question = args.Question
		term.Options = args.Options

	case tools.ConfirmAction:
		args, terr := tools.DecodeArguments[confirmArgs](v, call.Arguments)
		if terr != nil {
			return nil, terr
		}
		term.Kind = TerminalConfirmation
		term.Message = args.Message
		term.ConfirmValue = args.ConfirmValue

	case tools.ProposePlan:
		args, terr := tools.DecodeArguments[proposeArgs](v, call.Arguments)
		if terr != nil {
			return nil, terr
		}
		p := &plan.Plan{Summary: args.Summary, Groups: args.Groups}
		if err := p.Validate(); err != nil {
			return nil, tools.NewToolError(tools.KindValidation, "%v", err)
		}
		p.Normalize()
		term.Kind = TerminalPlanProposal
		term.Message = args.Summary
		term.Plan = p

	case tools.RevisePlanStep:
		args, terr := tools.DecodeArguments[reviseArgs](v, call.Arguments)
		if terr != nil {
			return nil, terr
		}
		if active == nil {
			return nil, tools.NewToolError(tools.KindValidation, "there is no plan under review to revise; use propose_plan")
		}
		index := *args.StepIndex
		if index >= len(active.Groups) {
			return nil, tools.NewToolError(tools.KindValidation, "stepIndex %d is out of range, the plan has %d groups", index, len(active.Groups))
		}
		if err := args.RevisedGroup.Validate(); err != nil {
			return nil, tools.NewToolError(tools.KindValidation, "%v", err)
		}
		term.Kind = TerminalStepRevision
		term.StepIndex = index
		term.RevisedGroup = args.RevisedGroup
		term.Message = fmt.Sprintf("Revised step %d: %s", index+1, args.RevisedGroup.Title)

	default:
		return nil, tools.NewToolError(tools.KindUnknownTool, "unknown terminal %q", call.Name)
	}
	return term, nil
}
