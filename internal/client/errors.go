package client

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt is returned by Controller.Send for blank input.
	ErrEmptyPrompt = errors.New("client: prompt is empty")

	// ErrSendInFlight is returned by Controller.Send while a reply is still streaming.
	ErrSendInFlight = errors.New("client: a message is already being sent")

	// ErrClosed is returned by Controller methods after Close.
	ErrClosed = errors.New("client: controller closed")

	// ErrBodyUnavailable is returned by a StreamTransport whose response has
	// no readable body. The session then falls back to a single exchange.
	ErrBodyUnavailable = errors.New("client: response body unavailable")

	// ErrStreamTruncated means the stream ended before an end or error frame.
	ErrStreamTruncated = errors.New("client: stream ended without a terminal frame")

	// ErrIdleTimeout means no bytes arrived within SessionOptions.IdleTimeout.
	ErrIdleTimeout = errors.New("client: stream idle timeout")

	// ErrCancelled is the result of a session that was cancelled. It is not a failure.
	ErrCancelled = errors.New("client: session cancelled")

	// ErrSessionStarted is returned when Run is called on a session twice.
	ErrSessionStarted = errors.New("client: session already started")
)

// StatusError is a non-2xx response from the chat API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat api returned status %d: %s", e.StatusCode, e.Message)
}

// ProtocolError is an error frame received from the server.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return "stream error"
	}
	return e.Message
}
