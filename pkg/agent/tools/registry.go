// Package tools is the function registry the agent loop dispatches model
// tool calls to. Each tool has typed arguments and results; JSON appears only
// at the model-facing edge.
package tools

import (
	"context"
	"sort"
	"time"

	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/store"
	"ai-notetaking-agent/pkg/embedding"
	"ai-notetaking-agent/pkg/llm"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Registry struct {
	handlers map[ToolName]Handler

	store            store.Store
	ops              *Operations
	bulk             *bulk.Engine
	embedder         embedding.EmbeddingProvider
	embeddingTimeout time.Duration
	validate         *validator.Validate
	logger           logger.ILogger
}

type Deps struct {
	Store            store.Store
	Operations       *Operations
	Bulk             *bulk.Engine
	Embedder         embedding.EmbeddingProvider // optional; search_notes falls back to text search
	EmbeddingTimeout time.Duration
	Logger           logger.ILogger
}

func NewRegistry(d Deps) *Registry {
	r := &Registry{
		handlers:         make(map[ToolName]Handler),
		store:            d.Store,
		ops:              d.Operations,
		bulk:             d.Bulk,
		embedder:         d.Embedder,
		embeddingTimeout: d.EmbeddingTimeout,
		validate:         NewValidator(),
		logger:           d.Logger,
	}
	if r.embeddingTimeout <= 0 {
		r.embeddingTimeout = 5 * time.Second
	}
	r.registerQueryTools()
	r.registerMutationTools()
	return r
}

func (r *Registry) register(h Handler) {
	r.handlers[h.Name()] = h
}

// Validator is shared with the loop for terminal argument parsing.
func (r *Registry) Validator() *validator.Validate {
	return r.validate
}

// Execute runs one data tool. Unknown names come back as an unknown_tool error.
func (r *Registry) Execute(ctx context.Context, name string, arguments string, userId uuid.UUID) Result {
	h, ok := r.handlers[ToolName(name)]
	if !ok {
		return Fail(NewToolError(KindUnknownTool, "unknown tool %q", name))
	}

	start := time.Now()
	res := h.Execute(ctx, userId, arguments)
	details := map[string]interface{}{
		"tool":        name,
		"user_id":     userId.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		details["kind"] = string(res.Err.Kind)
		details["error"] = res.Err.Message
		r.logger.Warn("ToolRegistry", "Tool call failed", details)
	} else {
		r.logger.Debug("ToolRegistry", "Tool call succeeded", details)
	}
	return res
}

// Definitions lists the data tools sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.handlers))
	for _, h := range r.handlers {
		defs = append(defs, h.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Catalogue is the full tool list offered to the model: data, frontend and terminal tools.
func (r *Registry) Catalogue() []llm.ToolDefinition {
	defs := r.Definitions()
	defs = append(defs, frontendDefinitions()...)
	defs = append(defs, terminalDefinitions()...)
	return defs
}
