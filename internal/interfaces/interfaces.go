package interfaces

import (
	"context"

	"docdash/internal/llm"
	"docdash/internal/model"
	"docdash/internal/service"
)

// The API layer depends on these contracts rather than on the concrete
// services, which keeps handlers testable with mocks.

// ChatService covers conversations and the exchanges inside them.
type ChatService interface {
	ListConversations(ctx context.Context) ([]model.ConversationSummary, error)
	CreateConversation(ctx context.Context, title string) (*model.ConversationSummary, error)
	GetConversation(ctx context.Context, id string) (*model.ConversationDetail, error)
	RenameConversation(ctx context.Context, id, title string) (*model.ConversationSummary, error)
	DeleteConversation(ctx context.Context, id string) error
	StreamReply(ctx context.Context, conversationID, content string, sink service.FrameSink) error
	Reply(ctx context.Context, conversationID, content string) (*service.ReplyResult, error)
}

// ModelService lists the models of the configured provider.
type ModelService interface {
	List(ctx context.Context) (*llm.ListModelsResponse, error)
}

// SettingsService manages the persisted runtime settings.
type SettingsService interface {
	InitAndGet(ctx context.Context, defaultPrompt, defaultModel string) (*service.Settings, error)
	Get(ctx context.Context) (*service.Settings, error)
	Save(ctx context.Context, settings *service.Settings) error
}
