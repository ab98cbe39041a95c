package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"docdash/internal/model"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// HTTPTransport talks to the docdash chat API.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport returns a transport for the API rooted at baseURL
// (e.g. http://localhost:8000). A nil client means a fresh http.Client
// without a timeout, since streams are long-lived.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		client:  client,
	}
}

type messageRequest struct {
	Content string `json:"content"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (t *HTTPTransport) OpenStream(ctx context.Context, conversationID, prompt string) (io.ReadCloser, error) {
	req, err := t.newRequest(ctx, http.MethodPost, conversationPath(conversationID, "messages", "stream"), messageRequest{Content: prompt})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	// The client swaps in http.NoBody for empty responses.
	if resp.Body == http.NoBody {
		return nil, ErrBodyUnavailable
	}
	return resp.Body, nil
}

func (t *HTTPTransport) Send(ctx context.Context, conversationID, prompt string) (*Exchange, error) {
	var ex Exchange
	if err := t.do(ctx, http.MethodPost, conversationPath(conversationID, "messages"), messageRequest{Content: prompt}, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

func (t *HTTPTransport) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	var list []model.ConversationSummary
	if err := t.do(ctx, http.MethodGet, "/conversations", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (t *HTTPTransport) CreateConversation(ctx context.Context, title string) (*model.ConversationSummary, error) {
	var conv model.ConversationSummary
	if err := t.do(ctx, http.MethodPost, "/conversations", titleRequest{Title: title}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (t *HTTPTransport) GetConversation(ctx context.Context, id string) (*model.ConversationDetail, error) {
	var detail model.ConversationDetail
	if err := t.do(ctx, http.MethodGet, conversationPath(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (t *HTTPTransport) RenameConversation(ctx context.Context, id, title string) (*model.ConversationSummary, error) {
	var conv model.ConversationSummary
	if err := t.do(ctx, http.MethodPut, conversationPath(id, "title"), titleRequest{Title: title}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (t *HTTPTransport) DeleteConversation(ctx context.Context, id string) error {
	return t.do(ctx, http.MethodDelete, conversationPath(id), nil, nil)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	req, err := t.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// checkStatus turns a non-2xx response into a *StatusError and closes its body.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload errorResponse
	msg := strings.TrimSpace(string(bodyBytes))
	if err := json.Unmarshal(bodyBytes, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

func conversationPath(id string, rest ...string) string {
	parts := append([]string{"/conversations", url.PathEscape(id)}, rest...)
	return strings.Join(parts, "/")
}
