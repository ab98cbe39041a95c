// Package llm adapts language model backends to the streaming contract the
// chat service consumes.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted by NewProvider.
const (
	ProviderEcho   = "echo"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Message is one turn of the prompt history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest asks a provider for the assistant's next turn.
type GenerateRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// GenerateResponse is a complete, non-streamed reply.
type GenerateResponse struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	TokenCount int    `json:"token_count,omitempty"`
}

// StreamResponse is one piece of a streamed reply. The last one has Done set
// and carries the token count when the provider reports it.
type StreamResponse struct {
	Content    string
	Done       bool
	TokenCount int
	Error      string
}

// Model describes a model the provider can serve.
type Model struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// ListModelsResponse is the provider's model catalogue.
type ListModelsResponse struct {
	Models []Model `json:"models"`
}

// LLMProvider defines the interface for interacting with a language model.
//
// GenerateStream sends the reply to ch and closes ch before returning, on
// success and on failure alike. Sends honour ctx so an abandoned consumer
// never blocks the provider.
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	GenerateStream(ctx context.Context, req *GenerateRequest, ch chan<- StreamResponse) error
	ListModels(ctx context.Context) (*ListModelsResponse, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider      string
	DefaultModel  string
	OllamaURL     string
	GeminiAPIKey  string
	OpenAIBaseURL string
	OpenAIAPIKey  string
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg Config) (LLMProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderEcho:
		return NewEchoProvider(0), nil
	case ProviderOllama:
		return NewOllamaProvider(cfg.OllamaURL), nil
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.DefaultModel)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.DefaultModel)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// send delivers resp unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamResponse, resp StreamResponse) error {
	select {
	case ch <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
