// Black-box tests: only the exported API of the package is used.
package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docdash/internal/api"
	app_errors "docdash/internal/errors"
	"docdash/internal/interfaces/mocks"
	"docdash/internal/model"
	"docdash/internal/service"
	"docdash/internal/stream"
)

func setupChatHandler(t *testing.T) (*api.ChatHandler, *mocks.MockChatService, *mocks.MockSettingsService) {
	mockChatSvc := mocks.NewMockChatService(t)
	mockSettingsSvc := mocks.NewMockSettingsService(t)
	handler := api.NewChatHandler(mockChatSvc, mockSettingsSvc)
	return handler, mockChatSvc, mockSettingsSvc
}

// addChiURLParams injects URL parameters the way the chi router would, so
// handlers can be called directly.
func addChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for key, value := range params {
		chiCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestChatHandler_GetSettings(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, _, mockSettingsSvc := setupChatHandler(t)
		mockSettingsSvc.On("Get", mock.Anything).Return(&service.Settings{MainModel: "test"}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
		rr := httptest.NewRecorder()
		handler.GetSettings(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"system_prompt":"","main_model":"test"}`, rr.Body.String())
	})

	t.Run("Failure", func(t *testing.T) {
		handler, _, mockSettingsSvc := setupChatHandler(t)
		mockSettingsSvc.On("Get", mock.Anything).Return(nil, app_errors.ErrInternal).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
		rr := httptest.NewRecorder()
		handler.GetSettings(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestChatHandler_UpdateSettings(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, _, mockSettingsSvc := setupChatHandler(t)
		expected := &service.Settings{SystemPrompt: "be brief", MainModel: "llama3"}
		mockSettingsSvc.On("Save", mock.Anything, expected).Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/v1/settings", strings.NewReader(`{"system_prompt":"be brief","main_model":"llama3"}`))
		rr := httptest.NewRecorder()
		handler.UpdateSettings(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Failure - Missing model", func(t *testing.T) {
		handler, _, _ := setupChatHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/settings", strings.NewReader(`{"system_prompt":"x"}`))
		rr := httptest.NewRecorder()
		handler.UpdateSettings(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr), "Field 'MainModel' failed on the 'required' tag")
	})

	t.Run("Failure - Unknown model", func(t *testing.T) {
		handler, _, mockSettingsSvc := setupChatHandler(t)
		mockSettingsSvc.On("Save", mock.Anything, mock.Anything).
			Return(fmt.Errorf("%w: main model 'nope' is not available", app_errors.ErrValidation)).Once()

		req := httptest.NewRequest(http.MethodPost, "/v1/settings", strings.NewReader(`{"main_model":"nope"}`))
		rr := httptest.NewRecorder()
		handler.UpdateSettings(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr), "main model 'nope' is not available")
	})
}

func TestChatHandler_ListConversations(t *testing.T) {
	handler, mockChatSvc, _ := setupChatHandler(t)
	mockChatSvc.On("ListConversations", mock.Anything).
		Return([]model.ConversationSummary{{ID: "c1", Title: "Hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	rr := httptest.NewRecorder()
	handler.ListConversations(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var list []model.ConversationSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, "c1", list[0].ID)
}

func TestChatHandler_CreateConversation(t *testing.T) {
	t.Run("Success - Empty body", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("CreateConversation", mock.Anything, "").
			Return(&model.ConversationSummary{ID: "c1", Title: model.DefaultConversationTitle}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/v1/conversations", http.NoBody)
		rr := httptest.NewRecorder()
		handler.CreateConversation(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("Success - With title", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("CreateConversation", mock.Anything, "Plans").
			Return(&model.ConversationSummary{ID: "c1", Title: "Plans"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/v1/conversations", strings.NewReader(`{"title":"Plans"}`))
		rr := httptest.NewRecorder()
		handler.CreateConversation(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), `"title":"Plans"`)
	})

	t.Run("Failure - Title too long", func(t *testing.T) {
		handler, _, _ := setupChatHandler(t)
		body := fmt.Sprintf(`{"title":%q}`, strings.Repeat("a", 101))

		req := httptest.NewRequest(http.MethodPost, "/v1/conversations", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.CreateConversation(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestChatHandler_GetConversation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		detail := &model.ConversationDetail{
			Conversation: model.ConversationSummary{ID: "c1"},
			Messages:     []model.ChatMessage{{ID: "m1", Role: model.RoleUser, Content: "hi"}},
		}
		mockChatSvc.On("GetConversation", mock.Anything, "c1").Return(detail, nil).Once()

		req := addChiURLParams(httptest.NewRequest(http.MethodGet, "/v1/conversations/c1", nil), map[string]string{"conversationID": "c1"})
		rr := httptest.NewRecorder()
		handler.GetConversation(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"messages":[{"id":"m1"`)
	})

	t.Run("Failure - Not found", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("GetConversation", mock.Anything, "nope").Return(nil, app_errors.ErrNotFound).Once()

		req := addChiURLParams(httptest.NewRequest(http.MethodGet, "/v1/conversations/nope", nil), map[string]string{"conversationID": "nope"})
		rr := httptest.NewRecorder()
		handler.GetConversation(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestChatHandler_RenameConversation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("RenameConversation", mock.Anything, "c1", "Renamed").
			Return(&model.ConversationSummary{ID: "c1", Title: "Renamed"}, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/v1/conversations/c1/title", strings.NewReader(`{"title":"Renamed"}`))
		req = addChiURLParams(req, map[string]string{"conversationID": "c1"})
		rr := httptest.NewRecorder()
		handler.RenameConversation(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Failure - Invalid JSON", func(t *testing.T) {
		handler, _, _ := setupChatHandler(t)

		req := httptest.NewRequest(http.MethodPut, "/v1/conversations/c1/title", strings.NewReader(`{"title":`))
		req = addChiURLParams(req, map[string]string{"conversationID": "c1"})
		rr := httptest.NewRecorder()
		handler.RenameConversation(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr), "invalid request payload")
	})
}

func TestChatHandler_DeleteConversation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("DeleteConversation", mock.Anything, "c1").Return(nil).Once()

		req := addChiURLParams(httptest.NewRequest(http.MethodDelete, "/v1/conversations/c1", nil), map[string]string{"conversationID": "c1"})
		rr := httptest.NewRecorder()
		handler.DeleteConversation(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("Failure - Not found", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("DeleteConversation", mock.Anything, "c1").Return(fmt.Errorf("%w: conversation c1", app_errors.ErrNotFound)).Once()

		req := addChiURLParams(httptest.NewRequest(http.MethodDelete, "/v1/conversations/c1", nil), map[string]string{"conversationID": "c1"})
		rr := httptest.NewRecorder()
		handler.DeleteConversation(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

// TestChatHandler_HandleStreamMessage checks the handler's side of streaming:
// headers, frame encoding and how errors before and after Start surface.
func TestChatHandler_HandleStreamMessage(t *testing.T) {
	newRequest := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/conversations/c1/messages/stream", strings.NewReader(body))
		return addChiURLParams(req, map[string]string{"conversationID": "c1"})
	}

	t.Run("Success - Frames are written", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("StreamReply", mock.Anything, "c1", "hello", mock.Anything).
			Run(func(args mock.Arguments) {
				sink := args.Get(3).(service.FrameSink)
				sink.Start()
				require.NoError(t, sink.Emit(stream.ChunkFrame{Content: "Hi"}))
				require.NoError(t, sink.Emit(stream.EndFrame{
					Message:      &model.ChatMessage{ID: "a1", Role: model.RoleAssistant, Content: "Hi"},
					Conversation: &model.ConversationSummary{ID: "c1", Title: "hello"},
				}))
			}).
			Return(nil).Once()

		rr := httptest.NewRecorder()
		handler.HandleStreamMessage(rr, newRequest(`{"content": "hello"}`))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
		assert.True(t, rr.Flushed)

		body := rr.Body.String()
		assert.True(t, strings.HasPrefix(body, `data:{"type":"chunk","content":"Hi"}`+"\n\n"), body)
		assert.Contains(t, body, `"type":"end"`)
	})

	t.Run("Failure - Rejected before start gets JSON", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("StreamReply", mock.Anything, "c1", "hello", mock.Anything).
			Return(fmt.Errorf("%w: conversation c1", app_errors.ErrNotFound)).Once()

		rr := httptest.NewRecorder()
		handler.HandleStreamMessage(rr, newRequest(`{"content": "hello"}`))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	})

	t.Run("Client gone after start is only logged", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("StreamReply", mock.Anything, "c1", "hello", mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(3).(service.FrameSink).Start()
			}).
			Return(errors.New("broken pipe")).Once()

		rr := httptest.NewRecorder()
		handler.HandleStreamMessage(rr, newRequest(`{"content": "hello"}`))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Body.String())
	})

	t.Run("Failure - Invalid JSON", func(t *testing.T) {
		handler, _, _ := setupChatHandler(t)

		rr := httptest.NewRecorder()
		handler.HandleStreamMessage(rr, newRequest(`{"content":`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr), "invalid request payload")
	})

	t.Run("Failure - Validation Error", func(t *testing.T) {
		handler, _, _ := setupChatHandler(t)

		rr := httptest.NewRecorder()
		handler.HandleStreamMessage(rr, newRequest(`{"content": ""}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr), "Field 'Content' failed on the 'required' tag")
	})
}

func TestChatHandler_HandleMessage(t *testing.T) {
	newRequest := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/conversations/c1/messages", strings.NewReader(body))
		return addChiURLParams(req, map[string]string{"conversationID": "c1"})
	}

	t.Run("Success", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		result := &service.ReplyResult{
			Message:      &model.ChatMessage{ID: "a1", Role: model.RoleAssistant, Content: "Hi"},
			Conversation: &model.ConversationSummary{ID: "c1"},
			UserMessage:  &model.ChatMessage{ID: "u1", Role: model.RoleUser, Content: "hello"},
		}
		mockChatSvc.On("Reply", mock.Anything, "c1", "hello").Return(result, nil).Once()

		rr := httptest.NewRecorder()
		handler.HandleMessage(rr, newRequest(`{"content":"hello"}`))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got service.ReplyResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "a1", got.Message.ID)
		assert.Equal(t, "u1", got.UserMessage.ID)
	})

	t.Run("Failure - Provider down", func(t *testing.T) {
		handler, mockChatSvc, _ := setupChatHandler(t)
		mockChatSvc.On("Reply", mock.Anything, "c1", "hello").Return(nil, fmt.Errorf("%w: timeout", app_errors.ErrUpstream)).Once()

		rr := httptest.NewRecorder()
		handler.HandleMessage(rr, newRequest(`{"content":"hello"}`))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestNewRouter(t *testing.T) {
	handler, mockChatSvc, _ := setupChatHandler(t)
	modelHandler, _ := setupModelHandler(t)
	router := api.NewRouter(handler, modelHandler, []string{"https://dash.example"})

	t.Run("Health", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Routes conversation IDs", func(t *testing.T) {
		mockChatSvc.On("GetConversation", mock.Anything, "abc").Return(nil, app_errors.ErrNotFound).Once()
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/conversations/abc", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("CORS preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/conversations", nil)
		req.Header.Set("Origin", "https://dash.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, "https://dash.example", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
