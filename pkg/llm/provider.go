package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages only
	ToolCallID string     // tool messages only
}

// ToolCall is one function invocation requested by the model.
// Arguments is the raw JSON text exactly as the provider returned it and may be malformed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes a callable function. Parameters is a JSON schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

type ChatRequest struct {
	Messages   []Message
	Tools      []ToolDefinition
	ToolChoice ToolChoice
}

// ChatResponse carries either free text or a list of tool calls (or both).
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ApplyOptions resolves opts over the provider defaults.
func ApplyOptions(opts ...Option) *Options {
	options := &Options{
		Temperature: 0.2,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// LLMProvider defines the contract for any tool-calling LLM backend
type LLMProvider interface {
	Chat(ctx context.Context, req ChatRequest, options ...Option) (*ChatResponse, error)
}
