package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type geminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider returns a provider backed by the Gemini API.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (LLMProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Name() string { return ProviderGemini }

func (p *geminiProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	model := p.modelFor(req)
	contents, cfg := toGeminiContents(req.Messages)

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}
	return &GenerateResponse{
		Model:      model,
		Response:   resp.Text(),
		TokenCount: geminiTokenCount(resp),
	}, nil
}

func (p *geminiProvider) GenerateStream(ctx context.Context, req *GenerateRequest, ch chan<- StreamResponse) error {
	defer close(ch)

	contents, cfg := toGeminiContents(req.Messages)
	tokens := 0
	for resp, err := range p.client.Models.GenerateContentStream(ctx, p.modelFor(req), contents, cfg) {
		if err != nil {
			return fmt.Errorf("gemini stream failed: %w", err)
		}
		if n := geminiTokenCount(resp); n > 0 {
			tokens = n
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := send(ctx, ch, StreamResponse{Content: text}); err != nil {
			return err
		}
	}
	return send(ctx, ch, StreamResponse{Done: true, TokenCount: tokens})
}

func (p *geminiProvider) ListModels(ctx context.Context) (*ListModelsResponse, error) {
	var models []Model
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("gemini list models failed: %w", err)
		}
		models = append(models, Model{Name: strings.TrimPrefix(m.Name, "models/")})
	}
	return &ListModelsResponse{Models: models}, nil
}

func (p *geminiProvider) modelFor(req *GenerateRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.model
}

// toGeminiContents maps the history onto Gemini's user/model turns. System
// messages become the system instruction.
func toGeminiContents(messages []Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}

func geminiTokenCount(resp *genai.GenerateContentResponse) int {
	if resp == nil || resp.UsageMetadata == nil {
		return 0
	}
	return int(resp.UsageMetadata.CandidatesTokenCount)
}
