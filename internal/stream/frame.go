// Package stream implements the chat event-stream protocol: `data:`-prefixed
// JSON frames separated by a blank line.
//
// Server side, Writer serializes frames and keep-alive comments. Client side,
// Decoder turns text arriving at arbitrary read boundaries back into frames.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"docdash/internal/model"
)

// FrameType is the discriminator carried in every frame's "type" field.
type FrameType string

const (
	TypeChunk FrameType = "chunk"
	TypeEnd   FrameType = "end"
	TypeError FrameType = "error"
)

// ErrUnknownFrameType is returned by ParseFrame for a payload whose type
// is none of chunk, end or error.
var ErrUnknownFrameType = errors.New("stream: unknown frame type")

// Frame is one decoded stream event. Its dynamic type is always one of
// ChunkFrame, EndFrame or ErrorFrame.
type Frame interface {
	Type() FrameType
	isFrame()
}

// ChunkFrame carries the next piece of assistant content.
type ChunkFrame struct {
	Content string
}

// EndFrame terminates a successful stream with the authoritative state.
// UserMessage is the persisted copy of the prompt, when the server sends it.
type EndFrame struct {
	Message      *model.ChatMessage
	Conversation *model.ConversationSummary
	UserMessage  *model.ChatMessage
}

// ErrorFrame terminates a stream with a server-reported failure.
type ErrorFrame struct {
	Message string
}

func (ChunkFrame) Type() FrameType { return TypeChunk }
func (EndFrame) Type() FrameType   { return TypeEnd }
func (ErrorFrame) Type() FrameType { return TypeError }

func (ChunkFrame) isFrame() {}
func (EndFrame) isFrame()   {}
func (ErrorFrame) isFrame() {}

// wireFrame is the JSON shape shared by all frame types.
type wireFrame struct {
	Type         FrameType                  `json:"type"`
	Content      *string                    `json:"content,omitempty"`
	Message      *model.ChatMessage         `json:"message,omitempty"`
	Conversation *model.ConversationSummary `json:"conversation,omitempty"`
	UserMessage  *model.ChatMessage         `json:"user_message,omitempty"`
	Error        *string                    `json:"error,omitempty"`
}

// ParseFrame decodes a single JSON payload into its typed frame.
func ParseFrame(payload []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}

	switch w.Type {
	case TypeChunk:
		var f ChunkFrame
		if w.Content != nil {
			f.Content = *w.Content
		}
		return f, nil
	case TypeEnd:
		return EndFrame{Message: w.Message, Conversation: w.Conversation, UserMessage: w.UserMessage}, nil
	case TypeError:
		var f ErrorFrame
		if w.Error != nil {
			f.Message = *w.Error
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, w.Type)
	}
}

// MarshalFrame encodes f as the JSON payload that follows the data: marker.
func MarshalFrame(f Frame) ([]byte, error) {
	w := wireFrame{Type: f.Type()}

	switch f := f.(type) {
	case ChunkFrame:
		w.Content = &f.Content
	case EndFrame:
		w.Message = f.Message
		w.Conversation = f.Conversation
		w.UserMessage = f.UserMessage
	case ErrorFrame:
		w.Error = &f.Message
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownFrameType, f)
	}

	return json.Marshal(w)
}
