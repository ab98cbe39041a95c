package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	app_errors "docdash/internal/errors"
	"docdash/internal/llm"
	"docdash/internal/model"
	"docdash/internal/repository"
	"docdash/internal/stream"
)

const (
	// titleLength caps the title derived from a conversation's first prompt.
	titleLength = 50

	generationFailedMessage = "The model failed to generate a response."
	saveFailedMessage       = "The reply could not be saved."
)

type ChatService struct {
	repo     repository.Repository
	llm      llm.LLMProvider
	settings *SettingsService
	now      func() time.Time
}

// FrameSink receives a streamed reply. Start is called once, after the
// exchange has been accepted and before the model is asked; every frame then
// goes to Emit. An Emit error means the client is gone.
type FrameSink interface {
	Start()
	Emit(f stream.Frame) error
}

// ReplyResult is the outcome of a completed exchange: the assistant's reply,
// the refreshed conversation summary and the persisted prompt.
type ReplyResult struct {
	Message      *model.ChatMessage         `json:"message"`
	Conversation *model.ConversationSummary `json:"conversation"`
	UserMessage  *model.ChatMessage         `json:"user_message,omitempty"`
}

func NewChatService(repo repository.Repository, llmProvider llm.LLMProvider, settings *SettingsService) *ChatService {
	return &ChatService{repo: repo, llm: llmProvider, settings: settings, now: time.Now}
}

// ListConversations returns every conversation, most recently active first.
func (s *ChatService) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	conversations, err := s.repo.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list conversations: %w", err)
	}
	return conversations, nil
}

// CreateConversation starts an empty conversation. A blank title becomes
// the default one, which the first exchange later replaces.
func (s *ChatService) CreateConversation(ctx context.Context, title string) (*model.ConversationSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultConversationTitle
	}

	id := uuid.NewString()
	if err := s.repo.CreateConversation(ctx, id, title, s.now()); err != nil {
		return nil, fmt.Errorf("could not create conversation: %w", err)
	}
	slog.InfoContext(ctx, "Created conversation", "conversation_id", id)
	return s.getSummary(ctx, id)
}

// GetConversation returns a conversation with its full message history.
func (s *ChatService) GetConversation(ctx context.Context, id string) (*model.ConversationDetail, error) {
	summary, err := s.getSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.GetMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get messages: %w", err)
	}
	return &model.ConversationDetail{Conversation: *summary, Messages: messages}, nil
}

func (s *ChatService) RenameConversation(ctx context.Context, id, title string) (*model.ConversationSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", app_errors.ErrValidation)
	}
	if err := s.repo.UpdateConversationTitle(ctx, id, title); err != nil {
		return nil, notFoundOr(err, id, "could not rename conversation")
	}
	return s.getSummary(ctx, id)
}

func (s *ChatService) DeleteConversation(ctx context.Context, id string) error {
	if err := s.repo.DeleteConversation(ctx, id); err != nil {
		return notFoundOr(err, id, "could not delete conversation")
	}
	slog.InfoContext(ctx, "Deleted conversation", "conversation_id", id)
	return nil
}

// StreamReply saves the prompt, streams the model's reply to sink as chunk
// frames and finishes with an end frame carrying the persisted state.
//
// Errors that prevent the exchange from starting (validation, unknown
// conversation, settings) are returned before sink.Start is called. After
// that, failures are reported to the sink as an error frame and StreamReply
// returns nil, unless the sink itself fails.
func (s *ChatService) StreamReply(ctx context.Context, conversationID, content string, sink FrameSink) error {
	t, err := s.beginTurn(ctx, conversationID, content)
	if err != nil {
		return err
	}
	sink.Start()

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan llm.StreamResponse)
	errCh := make(chan error, 1)
	go func() { errCh <- s.llm.GenerateStream(genCtx, t.request, ch) }()

	var (
		reply     strings.Builder
		tokens    int
		emitErr   error
		streamErr string
	)
	// The channel is drained to the end even after a failure so the
	// provider goroutine can always finish.
	for chunk := range ch {
		if emitErr != nil || streamErr != "" {
			continue
		}
		if chunk.Error != "" {
			streamErr = chunk.Error
			cancel()
			continue
		}
		if chunk.Content != "" {
			reply.WriteString(chunk.Content)
			if err := sink.Emit(stream.ChunkFrame{Content: chunk.Content}); err != nil {
				emitErr = err
				cancel()
				continue
			}
		}
		if chunk.Done {
			tokens = chunk.TokenCount
		}
	}
	genErr := <-errCh

	if emitErr != nil {
		slog.InfoContext(ctx, "Client went away during reply", "conversation_id", conversationID, "error", emitErr)
		return emitErr
	}
	if err := ctx.Err(); err != nil {
		slog.InfoContext(ctx, "Reply cancelled by client", "conversation_id", conversationID)
		return err
	}
	if genErr != nil || streamErr != "" {
		slog.ErrorContext(ctx, "Model failed to generate a reply",
			"conversation_id", conversationID, "provider", s.llm.Name(), "error", genErr, "stream_error", streamErr)
		return sink.Emit(stream.ErrorFrame{Message: generationFailedMessage})
	}

	result, err := s.finishTurn(ctx, t, reply.String(), tokens)
	if err != nil {
		slog.ErrorContext(ctx, "Could not save reply", "conversation_id", conversationID, "error", err)
		return sink.Emit(stream.ErrorFrame{Message: saveFailedMessage})
	}
	return sink.Emit(stream.EndFrame{
		Message:      result.Message,
		Conversation: result.Conversation,
		UserMessage:  result.UserMessage,
	})
}

// Reply is the non-streaming form of StreamReply.
func (s *ChatService) Reply(ctx context.Context, conversationID, content string) (*ReplyResult, error) {
	t, err := s.beginTurn(ctx, conversationID, content)
	if err != nil {
		return nil, err
	}

	resp, err := s.llm.Generate(ctx, t.request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrUpstream, err)
	}
	return s.finishTurn(ctx, t, resp.Response, resp.TokenCount)
}

type turn struct {
	conversation *model.ConversationSummary
	user         *model.ChatMessage
	request      *llm.GenerateRequest
}

// beginTurn validates the prompt, stores it and builds the model request
// from the system prompt and the conversation history.
func (s *ChatService) beginTurn(ctx context.Context, conversationID, content string) (*turn, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", app_errors.ErrValidation)
	}

	conversation, err := s.getSummary(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not load settings: %w", app_errors.ErrInternal, err)
	}

	user := &model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: model.NewTimestamp(s.now()),
	}
	if err := s.repo.AddMessage(ctx, conversationID, user); err != nil {
		return nil, fmt.Errorf("could not save user message: %w", err)
	}

	history, err := s.repo.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("could not get message history: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	if settings.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: string(model.RoleSystem), Content: settings.SystemPrompt})
	}
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}

	return &turn{
		conversation: conversation,
		user:         user,
		request:      &llm.GenerateRequest{Model: settings.MainModel, Messages: messages},
	}, nil
}

// finishTurn stores the assistant's reply, names a still-untitled
// conversation after its first prompt and returns the refreshed summary.
func (s *ChatService) finishTurn(ctx context.Context, t *turn, content string, tokens int) (*ReplyResult, error) {
	assistant := &model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleAssistant,
		Content:   content,
		CreatedAt: model.NewTimestamp(s.now()),
	}
	if tokens > 0 {
		assistant.TokenCount = &tokens
	}
	if err := s.repo.AddMessage(ctx, t.conversation.ID, assistant); err != nil {
		return nil, fmt.Errorf("could not save assistant message: %w", err)
	}

	if t.conversation.Title == model.DefaultConversationTitle && t.conversation.MessageCount == 0 {
		title := titleFrom(t.user.Content)
		if err := s.repo.UpdateConversationTitle(ctx, t.conversation.ID, title); err != nil {
			slog.WarnContext(ctx, "Could not title conversation", "conversation_id", t.conversation.ID, "error", err)
		}
	}

	summary, err := s.getSummary(ctx, t.conversation.ID)
	if err != nil {
		return nil, err
	}
	return &ReplyResult{Message: assistant, Conversation: summary, UserMessage: t.user}, nil
}

func (s *ChatService) getSummary(ctx context.Context, id string) (*model.ConversationSummary, error) {
	summary, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id, "could not get conversation")
	}
	return summary, nil
}

// titleFrom collapses the prompt's whitespace and truncates it.
func titleFrom(prompt string) string {
	return model.Preview(strings.Join(strings.Fields(prompt), " "), titleLength)
}

func notFoundOr(err error, id, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: conversation %s", app_errors.ErrNotFound, id)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
