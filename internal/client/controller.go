package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docdash/internal/model"
)

// FailureReply is appended as the assistant's turn when a reply fails, so the
// conversation always shows how the turn ended.
const FailureReply = "Sorry, I ran into a problem while answering. Please try again."

// ErrEmptyTitle is returned when renaming a conversation to a blank title.
var ErrEmptyTitle = errors.New("client: title is empty")

// Options configures a Controller.
type Options struct {
	Session SessionOptions
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

// Snapshot is a consistent copy of the controller's observable state.
type Snapshot struct {
	ConversationID string
	Conversations  []model.ConversationSummary
	Messages       []model.ChatMessage
	Placeholder    *model.Placeholder
	Sending        bool
	Error          string
}

// Controller glues user input to the streaming session and the conversation
// state. It allows one in-flight send at a time and owns the only reference
// to that session.
type Controller struct {
	transport Transport
	opts      Options
	logger    *slog.Logger
	changes   chan struct{}

	mu          sync.Mutex
	state       *Reconciler
	activeID    string
	generation  int
	placeholder *model.Placeholder
	sending     bool
	errMsg      string
	session     *Session
	closed      bool
}

// NewController returns a controller with no active conversation.
func NewController(transport Transport, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = opts.Logger
	}
	return &Controller{
		transport: transport,
		opts:      opts,
		logger:    opts.Logger,
		changes:   make(chan struct{}, 1),
		state:     NewReconciler(),
	}
}

// Changes receives a value after state changes. Notifications coalesce;
// read Snapshot for the current state.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ConversationID: c.activeID,
		Conversations:  c.state.Conversations(),
		Messages:       c.state.Messages(),
		Sending:        c.sending,
		Error:          c.errMsg,
	}
	if c.placeholder != nil {
		p := *c.placeholder
		snap.Placeholder = &p
	}
	return snap
}

// Load fetches the conversation list.
func (c *Controller) Load(ctx context.Context) error {
	list, err := c.transport.ListConversations(ctx)
	if err != nil {
		c.setError(err)
		return fmt.Errorf("list conversations: %w", err)
	}

	c.mu.Lock()
	c.state.LoadConversations(list)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Select makes id the active conversation. Any in-flight reply is cancelled
// before the conversation's messages are fetched.
func (c *Controller) Select(ctx context.Context, id string) error {
	gen, err := c.switchTo(id)
	if err != nil {
		return err
	}

	detail, err := c.transport.GetConversation(ctx, id)
	if err != nil {
		c.setError(err)
		return fmt.Errorf("get conversation %s: %w", id, err)
	}

	c.mu.Lock()
	if c.generation == gen {
		c.state.LoadDetail(*detail)
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// NewConversation creates a conversation and makes it active.
func (c *Controller) NewConversation(ctx context.Context, title string) (*model.ConversationSummary, error) {
	if strings.TrimSpace(title) == "" {
		title = model.DefaultConversationTitle
	}
	conv, err := c.transport.CreateConversation(ctx, title)
	if err != nil {
		c.setError(err)
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if _, err := c.switchTo(conv.ID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state.UpdateConversation(*conv)
	c.mu.Unlock()
	c.notify()
	return conv, nil
}

// Rename changes a conversation's title.
func (c *Controller) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	conv, err := c.transport.RenameConversation(ctx, id, title)
	if err != nil {
		c.setError(err)
		return fmt.Errorf("rename conversation %s: %w", id, err)
	}

	c.mu.Lock()
	c.state.UpdateConversation(*conv)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Delete removes a conversation. Deleting the active one leaves no
// conversation selected.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.transport.DeleteConversation(ctx, id); err != nil {
		c.setError(err)
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}

	c.mu.Lock()
	active := c.activeID == id
	c.mu.Unlock()
	if active {
		if _, err := c.switchTo(""); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.state.RemoveConversation(id)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Send submits text to the active conversation, creating one first if none
// is active, and blocks until the reply reaches a terminal state. It returns
// nil on success, ErrCancelled if the reply was cancelled, or the failure.
func (c *Controller) Send(ctx context.Context, text string) error {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	c.errMsg = ""
	gen := c.generation
	convID := c.activeID
	c.mu.Unlock()
	c.notify()

	var created *model.ConversationSummary
	if convID == "" {
		conv, err := c.transport.CreateConversation(ctx, model.DefaultConversationTitle)
		if err != nil {
			c.mu.Lock()
			c.sending = false
			c.errMsg = describe(err)
			c.mu.Unlock()
			c.notify()
			return fmt.Errorf("create conversation: %w", err)
		}
		created = conv
		convID = conv.ID
	}

	c.mu.Lock()
	if c.closed || c.generation != gen {
		c.sending = false
		c.mu.Unlock()
		c.notify()
		return ErrCancelled
	}
	if created != nil {
		c.activeID = created.ID
		c.state.UpdateConversation(*created)
	}

	tempID := "temp-" + c.opts.NewID()
	c.state.Append(model.ChatMessage{
		ID:        tempID,
		Role:      model.RoleUser,
		Content:   prompt,
		CreatedAt: model.NewTimestamp(c.opts.Now()),
	})
	sink := &sessionSink{c: c, tempID: tempID}
	sess := NewSession(convID, prompt, c.transport, sink, c.opts.Session)
	sink.session = sess
	c.session = sess
	c.mu.Unlock()
	c.notify()

	err := sess.Run(ctx)

	c.mu.Lock()
	if c.session == sess {
		c.session = nil
		c.placeholder = nil
		c.sending = false
	}
	c.mu.Unlock()
	c.notify()
	return err
}

// Cancel stops the in-flight reply, if any. No failure is recorded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess != nil {
		sess.Cancel()
	}
}

// Close cancels any in-flight reply and waits for its transport to be released.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sess := c.detachLocked()
	c.mu.Unlock()

	if sess != nil {
		sess.Cancel()
		<-sess.Done()
	}
}

// switchTo makes id active and clears its messages. The previous in-flight
// session is cancelled before it returns, and the send slot stays taken until
// then so no new session can overlap it.
func (c *Controller) switchTo(id string) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	sess := c.detachLocked()
	c.generation++
	gen := c.generation
	c.activeID = id
	c.errMsg = ""
	c.state.ClearMessages()
	if sess != nil {
		c.sending = true
	}
	c.mu.Unlock()

	if sess != nil {
		c.logger.Debug("Cancelling in-flight reply for previous conversation")
		sess.Cancel()
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}
	c.notify()
	return gen, nil
}

// detachLocked unhooks the in-flight session so its late effects are dropped.
// The caller cancels it after releasing c.mu.
func (c *Controller) detachLocked() *Session {
	sess := c.session
	c.session = nil
	c.placeholder = nil
	return sess
}

// fromSession applies fn while sess is still the in-flight session.
func (c *Controller) fromSession(sess *Session, fn func()) {
	c.mu.Lock()
	if c.session != sess || c.closed {
		c.mu.Unlock()
		return
	}
	fn()
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.errMsg = describe(err)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// describe turns a failure into the text shown to the user.
func describe(err error) string {
	var protoErr *ProtocolError
	var statusErr *StatusError
	switch {
	case errors.As(err, &protoErr):
		return protoErr.Error()
	case errors.As(err, &statusErr) && statusErr.Message != "":
		return statusErr.Message
	case errors.Is(err, ErrIdleTimeout):
		return "The response stalled. Please try again."
	default:
		return "Failed to get a response. Please try again."
	}
}

// sessionSink routes one session's effects into its controller.
type sessionSink struct {
	c       *Controller
	session *Session
	tempID  string
}

func (k *sessionSink) PlaceholderChanged(p model.Placeholder) {
	k.c.fromSession(k.session, func() { k.c.placeholder = &p })
}

func (k *sessionSink) PlaceholderCleared() {
	k.c.fromSession(k.session, func() { k.c.placeholder = nil })
}

func (k *sessionSink) Committed(message model.ChatMessage, conversation model.ConversationSummary, userMessage *model.ChatMessage) {
	k.c.fromSession(k.session, func() {
		if userMessage != nil && !k.c.state.ReplaceMessage(k.tempID, *userMessage) {
			k.c.logger.Warn("Optimistic message not found for replacement", "temp_id", k.tempID)
		}
		k.c.state.Commit(message, conversation)
	})
}

func (k *sessionSink) Failed(err error) {
	k.c.fromSession(k.session, func() {
		k.c.errMsg = describe(err)
		k.c.state.Append(model.ChatMessage{
			ID:        "error-" + k.c.opts.NewID(),
			Role:      model.RoleAssistant,
			Content:   FailureReply,
			CreatedAt: model.NewTimestamp(k.c.opts.Now()),
		})
	})
}
