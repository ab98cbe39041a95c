package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"docdash/internal/interfaces"
	"docdash/internal/service"
	"docdash/internal/stream"
)

// ChatHandler serves conversations, replies and settings.
type ChatHandler struct {
	chat      interfaces.ChatService
	settings  interfaces.SettingsService
	keepAlive time.Duration
}

// ChatHandlerOption configures a ChatHandler.
type ChatHandlerOption func(*ChatHandler)

// WithKeepAlive sets the interval of keep-alive comments on reply streams.
// Zero disables them.
func WithKeepAlive(interval time.Duration) ChatHandlerOption {
	return func(h *ChatHandler) { h.keepAlive = interval }
}

func NewChatHandler(chatSvc interfaces.ChatService, settingsSvc interfaces.SettingsService, opts ...ChatHandlerOption) *ChatHandler {
	h := &ChatHandler{chat: chatSvc, settings: settingsSvc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetSettings godoc
// @Summary      Get settings
// @Description  Returns the system prompt and the model used for replies.
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  service.Settings
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/settings [get]
func (h *ChatHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary      Update settings
// @Description  Saves the system prompt and main model. The model must be offered by the provider.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        settings  body      service.Settings  true  "New settings"
// @Success      200       {object}  StatusResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      502       {object}  ErrorResponse
// @Router       /v1/settings [post]
func (h *ChatHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.Settings
	if err := decodeAndValidate(r, &req, false); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.settings.Save(r.Context(), &req); err != nil {
		respondWithError(w, err)
		return
	}
	slog.Info("Settings updated.", "main_model", req.MainModel)
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// ListConversations godoc
// @Summary      List conversations
// @Description  Returns every conversation, most recently active first.
// @Tags         Conversations
// @Produce      json
// @Success      200  {array}   model.ConversationSummary
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/conversations [get]
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chat.ListConversations(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, conversations)
}

// CreateConversation godoc
// @Summary      Create a conversation
// @Description  Starts an empty conversation. The body is optional; a blank title becomes "New chat".
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        request  body      TitleRequest  false  "Title"
// @Success      201      {object}  model.ConversationSummary
// @Failure      400      {object}  ErrorResponse
// @Router       /v1/conversations [post]
func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := decodeAndValidate(r, &req, true); err != nil {
		respondWithError(w, err)
		return
	}
	conversation, err := h.chat.CreateConversation(r.Context(), req.Title)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, conversation)
}

// GetConversation godoc
// @Summary      Get a conversation
// @Description  Returns a conversation with its full ordered message history.
// @Tags         Conversations
// @Produce      json
// @Param        conversationID  path      string  true  "Conversation ID"
// @Success      200             {object}  model.ConversationDetail
// @Failure      404             {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID} [get]
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.chat.GetConversation(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

// RenameConversation godoc
// @Summary      Rename a conversation
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        conversationID  path      string        true  "Conversation ID"
// @Param        request         body      TitleRequest  true  "New title"
// @Success      200             {object}  model.ConversationSummary
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/title [put]
func (h *ChatHandler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		respondWithError(w, err)
		return
	}
	conversation, err := h.chat.RenameConversation(r.Context(), chi.URLParam(r, "conversationID"), req.Title)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, conversation)
}

// DeleteConversation godoc
// @Summary      Delete a conversation
// @Description  Deletes a conversation and all of its messages.
// @Tags         Conversations
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID} [delete]
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteConversation(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStreamMessage godoc
// @Summary      Send a message and stream the reply
// @Description  Streams `data: <json>` frames of type chunk, then a single end or error frame. Requests rejected before streaming starts get a JSON error instead.
// @Tags         Messages
// @Accept       json
// @Produce      text/event-stream
// @Param        conversationID  path      string          true  "Conversation ID"
// @Param        request         body      MessageRequest  true  "Prompt"
// @Success      200             {string}  string          "Event stream"
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/messages/stream [post]
func (h *ChatHandler) HandleStreamMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		respondWithError(w, err)
		return
	}
	conversationID := chi.URLParam(r, "conversationID")

	sink := newFrameStream(w, h.keepAlive)
	defer sink.Close()

	err := h.chat.StreamReply(r.Context(), conversationID, req.Content, sink)
	switch {
	case err != nil && !sink.started:
		respondWithError(w, err)
	case err != nil:
		slog.Info("Reply stream ended early", "conversation_id", conversationID, "error", err)
	default:
		slog.Info("Finished streaming reply.", "conversation_id", conversationID)
	}
}

// HandleMessage godoc
// @Summary      Send a message
// @Description  Non-streaming fallback: waits for the complete reply.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Param        conversationID  path      string          true  "Conversation ID"
// @Param        request         body      MessageRequest  true  "Prompt"
// @Success      200             {object}  service.ReplyResult
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Failure      502             {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/messages [post]
func (h *ChatHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		respondWithError(w, err)
		return
	}
	result, err := h.chat.Reply(r.Context(), chi.URLParam(r, "conversationID"), req.Content)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// frameStream writes a reply as an event stream. Headers are only sent on
// Start, so a request rejected before then still gets a JSON error.
type frameStream struct {
	w         http.ResponseWriter
	writer    *stream.Writer
	keepAlive *stream.KeepAlive
	stopped   <-chan struct{}
	started   bool
}

func newFrameStream(w http.ResponseWriter, keepAlive time.Duration) *frameStream {
	return &frameStream{w: w, keepAlive: stream.NewKeepAlive(keepAlive)}
}

func (s *frameStream) Start() {
	if s.started {
		return
	}
	s.started = true
	stream.PrepareHeaders(s.w.Header())
	s.w.WriteHeader(http.StatusOK)
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	s.writer = stream.NewWriter(s.w)
	s.stopped = s.keepAlive.Start(s.writer, nil)
}

func (s *frameStream) Emit(f stream.Frame) error {
	if !s.started {
		s.Start()
	}
	return s.writer.WriteFrame(f)
}

// Close stops the keep-alive and waits for it, so nothing writes to the
// response after the handler returns.
func (s *frameStream) Close() {
	s.keepAlive.Stop()
	if s.stopped != nil {
		<-s.stopped
	}
}
