package repository

import (
	"context"
	"time"

	"docdash/internal/model"
)

// Repository defines the storage operations for conversations and their messages.
type Repository interface {
	CreateConversation(ctx context.Context, id, title string, now time.Time) error
	GetConversation(ctx context.Context, id string) (*model.ConversationSummary, error)
	ListConversations(ctx context.Context) ([]model.ConversationSummary, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error

	// AddMessage stores message and bumps the conversation's updated_at.
	AddMessage(ctx context.Context, conversationID string, message *model.ChatMessage) error
	GetMessages(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
}
