package agenttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ai-notetaking-agent/pkg/embedding"
	"ai-notetaking-agent/pkg/llm"
)

var ErrScriptExhausted = errors.New("agenttest: scripted LLM has no more responses")

// Step is one scripted reply. A non-nil Err is returned instead of Response.
// Block, when set, makes the call wait for ctx to end.
type Step struct {
	Response *llm.ChatResponse
	Err      error
	Block    bool
}

// ScriptedLLM replays steps in order and records every request it receives.
// With Repeat set, the last step is replayed forever.
type ScriptedLLM struct {
	mu       sync.Mutex
	steps    []Step
	Repeat   bool
	requests []llm.ChatRequest
}

var _ llm.LLMProvider = (*ScriptedLLM)(nil)

func NewScriptedLLM(steps ...Step) *ScriptedLLM {
	return &ScriptedLLM{steps: steps}
}

func (s *ScriptedLLM) Chat(ctx context.Context, req llm.ChatRequest, _ ...llm.Option) (*llm.ChatResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := s.steps[0]
	if len(s.steps) > 1 || !s.Repeat {
		s.steps = s.steps[1:]
	}
	s.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

func (s *ScriptedLLM) Requests() []llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.ChatRequest(nil), s.requests...)
}

// Call builds a tool call step. args is marshalled unless it is already a string.
func Call(id, name string, args interface{}) llm.ToolCall {
	var raw string
	switch v := args.(type) {
	case string:
		raw = v
	case nil:
		raw = "{}"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("agenttest: marshal args: %v", err))
		}
		raw = string(b)
	}
	return llm.ToolCall{ID: id, Name: name, Arguments: raw}
}

func Calls(calls ...llm.ToolCall) Step {
	return Step{Response: &llm.ChatResponse{ToolCalls: calls}}
}

func Text(content string) Step {
	return Step{Response: &llm.ChatResponse{Content: content}}
}

// FakeEmbedder returns a fixed vector per text, or Default for unknown text.
type FakeEmbedder struct {
	mu      sync.Mutex
	Vectors map[string][]float32
	Default []float32
	Err     error
	Calls   int
}

var _ embedding.EmbeddingProvider = (*FakeEmbedder)(nil)

func (f *FakeEmbedder) Generate(ctx context.Context, text string, _ string) (*embedding.EmbeddingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	v, ok := f.Vectors[text]
	if !ok {
		v = f.Default
	}
	if v == nil {
		v = []float32{1, 0, 0}
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: v}}, nil
}
