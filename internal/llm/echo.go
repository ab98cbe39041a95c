package llm

import (
	"context"
	"strings"
	"time"
)

const echoModel = "echo"

// echoProvider answers by repeating the last user message word by word. It
// needs no network and makes the server usable for demos and tests.
type echoProvider struct {
	delay time.Duration
}

// NewEchoProvider returns the offline provider. delay is the pause between
// streamed words.
func NewEchoProvider(delay time.Duration) LLMProvider {
	return &echoProvider{delay: delay}
}

func (p *echoProvider) Name() string { return ProviderEcho }

func (p *echoProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := echoReply(req.Messages)
	return &GenerateResponse{
		Model:      echoModel,
		Response:   reply,
		TokenCount: len(strings.Fields(reply)),
	}, nil
}

func (p *echoProvider) GenerateStream(ctx context.Context, req *GenerateRequest, ch chan<- StreamResponse) error {
	defer close(ch)

	reply := echoReply(req.Messages)
	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		if word == "" {
			continue
		}
		if p.delay > 0 {
			timer := time.NewTimer(p.delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		if err := send(ctx, ch, StreamResponse{Content: word}); err != nil {
			return err
		}
	}
	return send(ctx, ch, StreamResponse{Done: true, TokenCount: len(strings.Fields(reply))})
}

func (p *echoProvider) ListModels(context.Context) (*ListModelsResponse, error) {
	return &ListModelsResponse{Models: []Model{{Name: echoModel}}}, nil
}

func echoReply(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return "You said: " + messages[i].Content
		}
	}
	return "Nothing to echo."
}
