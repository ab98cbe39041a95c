package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

func TestEchoProvider(t *testing.T) {
	ctx := context.Background()
	provider := NewEchoProvider(0)
	req := &GenerateRequest{Messages: []Message{
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "You said: first"},
		{Role: "user", Content: "hello big world"},
	}}

	t.Run("Generate", func(t *testing.T) {
		resp, err := provider.Generate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "You said: hello big world", resp.Response)
		assert.Equal(t, 5, resp.TokenCount)
	})

	t.Run("GenerateStream", func(t *testing.T) {
		ch := make(chan StreamResponse)
		errCh := make(chan error, 1)
		go func() { errCh <- provider.GenerateStream(ctx, req, ch) }()

		var text strings.Builder
		var last StreamResponse
		for chunk := range ch {
			text.WriteString(chunk.Content)
			last = chunk
		}
		require.NoError(t, <-errCh)
		assert.Equal(t, "You said: hello big world", text.String())
		assert.True(t, last.Done)
		assert.Equal(t, 5, last.TokenCount)
	})

	t.Run("GenerateStream stops when the consumer leaves", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		ch := make(chan StreamResponse)
		errCh := make(chan error, 1)
		go func() { errCh <- provider.GenerateStream(ctx, req, ch) }()

		<-ch
		cancel()

		assert.ErrorIs(t, <-errCh, context.Canceled)
		for range ch {
		}
	})
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderEcho, p.Name())

	p, err = NewProvider(ctx, Config{Provider: "OLLAMA", OllamaURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())

	_, err = NewProvider(ctx, Config{Provider: ProviderGemini})
	assert.ErrorContains(t, err, "API key")

	_, err = NewProvider(ctx, Config{Provider: ProviderOpenAI})
	assert.ErrorContains(t, err, "default model")

	_, err = NewProvider(ctx, Config{Provider: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestToGeminiContents(t *testing.T) {
	contents, cfg := toGeminiContents([]Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})

	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)
}

func TestToMessageContent(t *testing.T) {
	out := toMessageContent([]Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})

	require.Len(t, out, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, out[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, out[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, out[2].Role)
	assert.Equal(t, llms.TextContent{Text: "hello"}, out[2].Parts[0])
}

func TestOpenAIProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6}
		}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(server.URL, "test-token", "gpt-test")
	require.NoError(t, err)

	resp, err := provider.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Response)
	assert.Equal(t, "gpt-test", resp.Model)

	models, err := provider.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Model{{Name: "gpt-test"}}, models.Models)
}
