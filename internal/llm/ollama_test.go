package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOllamaProvider runs the provider against a stand-in Ollama API.
func TestOllamaProvider(t *testing.T) {
	var captured ollamaChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			_, err := w.Write([]byte(`{"models":[{"name":"llama3:8b","size":42}]}`))
			assert.NoError(t, err)
		case "/api/chat":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			if !captured.Stream {
				_, _ = w.Write([]byte(`{"model":"llama3:8b","message":{"role":"assistant","content":"Hello there"},"done":true,"eval_count":3}`))
				return
			}
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Hel"},"done":false}` + "\n"))
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"lo"},"done":false}` + "\n"))
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true,"eval_count":2}` + "\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL + "/")
	ctx := context.Background()
	req := &GenerateRequest{
		Model:    "llama3:8b",
		Messages: []Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}},
	}

	t.Run("ListModels", func(t *testing.T) {
		models, err := provider.ListModels(ctx)
		require.NoError(t, err)
		require.Len(t, models.Models, 1)
		assert.Equal(t, "llama3:8b", models.Models[0].Name)
	})

	t.Run("Generate", func(t *testing.T) {
		resp, err := provider.Generate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Hello there", resp.Response)
		assert.Equal(t, 3, resp.TokenCount)
		assert.False(t, captured.Stream)
		assert.Len(t, captured.Messages, 2)
	})

	t.Run("GenerateStream", func(t *testing.T) {
		ch := make(chan StreamResponse)
		errCh := make(chan error, 1)
		go func() { errCh <- provider.GenerateStream(ctx, req, ch) }()

		var chunks []StreamResponse
		for chunk := range ch {
			chunks = append(chunks, chunk)
		}
		require.NoError(t, <-errCh)
		require.Len(t, chunks, 3)
		assert.Equal(t, "Hel", chunks[0].Content)
		assert.Equal(t, "lo", chunks[1].Content)
		assert.True(t, chunks[2].Done)
		assert.Equal(t, 2, chunks[2].TokenCount)
		assert.True(t, captured.Stream)
	})
}

func TestOllamaProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL)

	ch := make(chan StreamResponse)
	err := provider.GenerateStream(context.Background(), &GenerateRequest{Model: "missing"}, ch)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	_, open := <-ch
	assert.False(t, open, "channel must be closed on failure")
}
