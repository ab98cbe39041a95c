package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docdash/internal/model"
	"docdash/internal/stream"
)

// State is a session's position in its lifecycle:
// idle → requesting → streaming → completed | errored | cancelled.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateErrored
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s is absorbing.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Sink receives a session's effects. Calls are made with the session's lock
// held, in the order the effects happen. The effects of reaching a terminal
// state are the last calls made. A Sink must not call back into the session.
type Sink interface {
	PlaceholderChanged(p model.Placeholder)
	PlaceholderCleared()
	Committed(message model.ChatMessage, conversation model.ConversationSummary, userMessage *model.ChatMessage)
	Failed(err error)
}

// SessionOptions tunes a Session. The zero value is usable.
type SessionOptions struct {
	// IdleTimeout fails the session when no bytes arrive for this long.
	// Zero disables it and leaves stall detection to the transport.
	IdleTimeout time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = func() string { return "streaming-" + uuid.NewString() }
	}
	return o
}

// Session runs one request/response stream to completion or cancellation.
type Session struct {
	conversationID string
	prompt         string
	transport      StreamTransport
	sink           Sink
	opts           SessionOptions
	logger         *slog.Logger

	mu          sync.Mutex
	state       State
	placeholder *model.Placeholder
	content     strings.Builder
	committed   bool
	err         error
	cancel      context.CancelCauseFunc

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession prepares a session; nothing happens until Run.
func NewSession(conversationID, prompt string, transport StreamTransport, sink Sink, opts SessionOptions) *Session {
	opts = opts.withDefaults()
	if sink == nil {
		sink = nopSink{}
	}
	return &Session{
		conversationID: conversationID,
		prompt:         prompt,
		transport:      transport,
		sink:           sink,
		opts:           opts,
		logger:         opts.Logger.With("conversation_id", conversationID),
		done:           make(chan struct{}),
	}
}

// Run issues the request and drives the stream until a terminal state. It
// returns nil on completion, ErrCancelled after cancellation, and the failure
// otherwise. Cancelling ctx cancels the session.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	switch s.state {
	case StateIdle:
	case StateCancelled:
		s.mu.Unlock()
		return ErrCancelled
	default:
		s.mu.Unlock()
		return ErrSessionStarted
	}
	s.cancel = cancel
	s.state = StateRequesting
	s.placeholder = &model.Placeholder{ID: s.opts.NewID(), CreatedAt: s.opts.Now()}
	s.sink.PlaceholderChanged(*s.placeholder)
	s.mu.Unlock()
	defer s.finish()

	body, err := s.transport.OpenStream(ctx, s.conversationID, s.prompt)
	if errors.Is(err, ErrBodyUnavailable) {
		s.logger.Info("Response body unavailable, falling back to a single exchange")
		return s.fallback(ctx)
	}
	if err != nil {
		return s.stop(ctx, fmt.Errorf("open stream: %w", err))
	}
	defer body.Close()

	if !s.advance(StateRequesting, StateStreaming) {
		return s.Err()
	}

	var r io.Reader = body
	if s.opts.IdleTimeout > 0 {
		idle := newIdleReader(body, s.opts.IdleTimeout, cancel)
		defer idle.stop()
		r = idle
	}

	dec := stream.NewDecoder(s.logger)
	for frame, err := range dec.Frames(r) {
		if ctx.Err() != nil {
			return s.stop(ctx, ctx.Err())
		}
		if err != nil {
			return s.stop(ctx, fmt.Errorf("read stream: %w", err))
		}
		if s.apply(frame) {
			return s.Err()
		}
	}
	if ctx.Err() != nil {
		return s.stop(ctx, ctx.Err())
	}
	return s.stop(ctx, ErrStreamTruncated)
}

// Cancel aborts the transport. Once it returns, the session makes no further
// placeholder or message changes. Cancelling a finished session is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	started := s.state != StateIdle
	s.state = StateCancelled
	s.err = ErrCancelled
	s.clearPlaceholderLocked()
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Debug("Session cancelled")
	if cancel != nil {
		cancel(ErrCancelled)
	}
	if !started {
		s.finish()
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Placeholder returns the in-progress reply, if one exists.
func (s *Session) Placeholder() (model.Placeholder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placeholder == nil {
		return model.Placeholder{}, false
	}
	return *s.placeholder, true
}

// Err returns the terminal result: nil while running or after completion.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once Run has returned, or on cancellation of a session that never ran.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) advance(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

// apply processes one frame and reports whether the session is now terminal.
func (s *Session) apply(f stream.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return true
	}

	switch f := f.(type) {
	case stream.ChunkFrame:
		s.content.WriteString(f.Content)
		if s.placeholder == nil {
			s.placeholder = &model.Placeholder{ID: s.opts.NewID(), CreatedAt: s.opts.Now()}
		}
		s.placeholder.Content = s.content.String()
		s.sink.PlaceholderChanged(*s.placeholder)
		return false
	case stream.EndFrame:
		s.clearPlaceholderLocked()
		s.state = StateCompleted
		s.commitLocked(f.Message, f.Conversation, f.UserMessage)
		return true
	case stream.ErrorFrame:
		s.failLocked(&ProtocolError{Message: f.Message})
		return true
	default:
		s.logger.Warn("Ignoring frame of unexpected type", "type", f.Type())
		return false
	}
}

func (s *Session) fallback(ctx context.Context) error {
	ex, err := s.transport.Send(ctx, s.conversationID, s.prompt)
	if err != nil {
		return s.stop(ctx, fmt.Errorf("fallback send: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return s.err
	}
	s.clearPlaceholderLocked()
	s.state = StateCompleted
	s.commitLocked(ex.Message, ex.Conversation, ex.UserMessage)
	return nil
}

// stop ends the session after err. A cancelled context means cancellation,
// unless the idle timer was its cause.
func (s *Session) stop(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), ErrIdleTimeout) {
			err = ErrIdleTimeout
		} else {
			s.Cancel()
			return s.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return s.err
	}
	s.failLocked(err)
	return err
}

func (s *Session) commitLocked(message *model.ChatMessage, conversation *model.ConversationSummary, userMessage *model.ChatMessage) {
	if s.committed {
		return
	}
	if message == nil || conversation == nil {
		s.logger.Warn("Stream finished without a message and conversation, nothing to commit")
		return
	}
	s.committed = true
	s.sink.Committed(*message, *conversation, userMessage)
}

func (s *Session) failLocked(err error) {
	s.clearPlaceholderLocked()
	s.state = StateErrored
	s.err = err
	s.logger.Warn("Session failed", "error", err)
	s.sink.Failed(err)
}

func (s *Session) clearPlaceholderLocked() {
	if s.placeholder == nil {
		return
	}
	s.placeholder = nil
	s.sink.PlaceholderCleared()
}

type nopSink struct{}

func (nopSink) PlaceholderChanged(model.Placeholder) {}
func (nopSink) PlaceholderCleared()                  {}
func (nopSink) Committed(model.ChatMessage, model.ConversationSummary, *model.ChatMessage) {}
func (nopSink) Failed(error) {}

// idleReader cancels the session when reads go quiet for too long.
type idleReader struct {
	r     io.Reader
	d     time.Duration
	timer *time.Timer
}

func newIdleReader(r io.Reader, d time.Duration, cancel context.CancelCauseFunc) *idleReader {
	return &idleReader{
		r:     r,
		d:     d,
		timer: time.AfterFunc(d, func() { cancel(ErrIdleTimeout) }),
	}
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.d)
	}
	return n, err
}

func (ir *idleReader) stop() {
	ir.timer.Stop()
}
