package embedding

import (
	"context"
	"fmt"
)

// Task types understood by Gemini. Other providers ignore them.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error)
}

// NewProvider picks the backend by name ("gemini" or "ollama").
func NewProvider(provider, geminiKey, ollamaBaseURL, ollamaModel string) (EmbeddingProvider, error) {
	switch provider {
	case "gemini":
		if geminiKey == "" {
			return nil, fmt.Errorf("gemini embedding provider requires an API key")
		}
		return NewGeminiProvider(geminiKey), nil
	case "ollama", "":
		return NewOllamaProvider(ollamaBaseURL, ollamaModel), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
