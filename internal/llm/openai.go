package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// openAIProvider talks to any OpenAI-compatible endpoint through langchaingo,
// including Ollama's /v1 API.
type openAIProvider struct {
	llm   llms.Model
	model string
}

// NewOpenAIProvider returns a provider for the OpenAI-compatible API at baseURL.
func NewOpenAIProvider(baseURL, token, model string) (LLMProvider, error) {
	if model == "" {
		return nil, fmt.Errorf("a default model is required for the openai provider")
	}
	opts := []openai.Option{openai.WithModel(model), openai.WithToken(token)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &openAIProvider{llm: client, model: model}, nil
}

func (p *openAIProvider) Name() string { return ProviderOpenAI }

func (p *openAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	model := p.modelFor(req)
	resp, err := p.llm.GenerateContent(ctx, toMessageContent(req.Messages), llms.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("openai generate failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	return &GenerateResponse{
		Model:      model,
		Response:   resp.Choices[0].Content,
		TokenCount: completionTokens(resp.Choices[0]),
	}, nil
}

func (p *openAIProvider) GenerateStream(ctx context.Context, req *GenerateRequest, ch chan<- StreamResponse) error {
	defer close(ch)

	resp, err := p.llm.GenerateContent(ctx, toMessageContent(req.Messages),
		llms.WithModel(p.modelFor(req)),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return send(ctx, ch, StreamResponse{Content: string(chunk)})
		}),
	)
	if err != nil {
		return fmt.Errorf("openai stream failed: %w", err)
	}

	tokens := 0
	if len(resp.Choices) > 0 {
		tokens = completionTokens(resp.Choices[0])
	}
	return send(ctx, ch, StreamResponse{Done: true, TokenCount: tokens})
}

// ListModels reports the configured model; the compatible APIs disagree on
// how models are listed.
func (p *openAIProvider) ListModels(context.Context) (*ListModelsResponse, error) {
	return &ListModelsResponse{Models: []Model{{Name: p.model}}}, nil
}

func (p *openAIProvider) modelFor(req *GenerateRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.model
}

func toMessageContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func completionTokens(choice *llms.ContentChoice) int {
	if choice == nil || choice.GenerationInfo == nil {
		return 0
	}
	if n, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
		return n
	}
	return 0
}
