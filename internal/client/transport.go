package client

import (
	"context"
	"io"

	"docdash/internal/model"
)

// Exchange is the result of a non-streaming send.
type Exchange struct {
	Message      *model.ChatMessage         `json:"message"`
	Conversation *model.ConversationSummary `json:"conversation"`
	UserMessage  *model.ChatMessage         `json:"user_message,omitempty"`
}

// StreamTransport is what a Session needs from the network.
type StreamTransport interface {
	// OpenStream posts prompt and returns the event-stream body. It returns
	// ErrBodyUnavailable when the response carries no readable body.
	OpenStream(ctx context.Context, conversationID, prompt string) (io.ReadCloser, error)
	// Send posts prompt and waits for the complete reply.
	Send(ctx context.Context, conversationID, prompt string) (*Exchange, error)
}

// ConversationStore holds the conversation CRUD operations the controller
// calls for initial state. They are served by the backend, not by this package.
type ConversationStore interface {
	ListConversations(ctx context.Context) ([]model.ConversationSummary, error)
	CreateConversation(ctx context.Context, title string) (*model.ConversationSummary, error)
	GetConversation(ctx context.Context, id string) (*model.ConversationDetail, error)
	RenameConversation(ctx context.Context, id, title string) (*model.ConversationSummary, error)
	DeleteConversation(ctx context.Context, id string) error
}

// Transport is everything a Controller talks to.
type Transport interface {
	StreamTransport
	ConversationStore
}
