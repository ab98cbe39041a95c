package model

import (
	"encoding/json"
	"time"
)

// DefaultConversationTitle is the title a conversation carries until its
// first exchange renames it.
const DefaultConversationTitle = "New chat"

// PreviewLength is the number of runes kept in a summary's last message preview.
const PreviewLength = 120

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is a single committed message in a conversation.
// Messages are immutable once committed; an optimistic copy is replaced
// wholesale, never edited.
type ChatMessage struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	TokenCount *int      `json:"token_count,omitempty"`
	CreatedAt  Timestamp `json:"created_at"`
}

// ConversationSummary is the list-view representation of a conversation.
type ConversationSummary struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	MessageCount       int       `json:"message_count"`
	LastMessagePreview string    `json:"last_message_preview"`
	UpdatedAt          Timestamp `json:"updated_at"`
}

// ConversationDetail is a conversation with its full ordered message history.
type ConversationDetail struct {
	Conversation ConversationSummary `json:"conversation"`
	Messages     []ChatMessage       `json:"messages"`
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Placeholder is the in-progress assistant reply shown while a response streams.
type Placeholder struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Preview shortens content to at most n runes for list display.
func Preview(content string, n int) string {
	if len(content) <= n {
		return content
	}
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n])
}

// Timestamp is an RFC 3339 instant as it travels on the wire. Values that
// don't parse are kept verbatim so they survive a round trip unchanged;
// parsed values are re-emitted in RFC 3339 form.
type Timestamp struct {
	time.Time
	raw string
}

// NewTimestamp wraps t, normalised to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// String returns the wire form of the timestamp.
func (t Timestamp) String() string {
	if t.raw != "" {
		return t.raw
	}
	if t.Time.IsZero() {
		return ""
	}
	return t.Time.Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		*t = Timestamp{raw: s}
		return nil
	}
	*t = Timestamp{Time: parsed}
	return nil
}
