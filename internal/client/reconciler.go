package client

import (
	"slices"

	"docdash/internal/model"
)

// Reconciler holds the observable conversation state: the active
// conversation's ordered messages and the conversation list, most recently
// active first. Messages are append-only and addressed by id.
//
// A Reconciler is not safe for concurrent use; the Controller owns it.
type Reconciler struct {
	messages      []model.ChatMessage
	conversations []model.ConversationSummary
}

// NewReconciler returns empty state.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Commit merges the server's authoritative result of one exchange. The
// message is appended, so each session must commit at most once. The
// conversation replaces its entry (or is inserted) and moves to the front;
// every other entry keeps its relative order.
func (r *Reconciler) Commit(message model.ChatMessage, conversation model.ConversationSummary) {
	r.messages = append(r.messages, message)
	r.moveToFront(conversation)
}

// Append adds a client-side message: the optimistic user prompt or the
// failure notice of a turn.
func (r *Reconciler) Append(message model.ChatMessage) {
	r.messages = append(r.messages, message)
}

// ReplaceMessage swaps the message with the given id for its authoritative
// version. It reports whether the id was found.
func (r *Reconciler) ReplaceMessage(id string, message model.ChatMessage) bool {
	i := slices.IndexFunc(r.messages, func(m model.ChatMessage) bool { return m.ID == id })
	if i < 0 {
		return false
	}
	r.messages[i] = message
	return true
}

// LoadConversations replaces the conversation list as fetched.
func (r *Reconciler) LoadConversations(list []model.ConversationSummary) {
	r.conversations = slices.Clone(list)
}

// LoadDetail supersedes the message sequence with a fetched conversation.
// The summary is refreshed in place without reordering the list.
func (r *Reconciler) LoadDetail(detail model.ConversationDetail) {
	r.messages = slices.Clone(detail.Messages)
	r.UpdateConversation(detail.Conversation)
}

// UpdateConversation refreshes an entry in place, or inserts it at the front.
func (r *Reconciler) UpdateConversation(conversation model.ConversationSummary) {
	if i := r.indexOf(conversation.ID); i >= 0 {
		r.conversations[i] = conversation
		return
	}
	r.conversations = slices.Insert(r.conversations, 0, conversation)
}

// RemoveConversation drops an entry from the list.
func (r *Reconciler) RemoveConversation(id string) {
	if i := r.indexOf(id); i >= 0 {
		r.conversations = slices.Delete(r.conversations, i, i+1)
	}
}

// ClearMessages empties the message sequence.
func (r *Reconciler) ClearMessages() {
	r.messages = nil
}

// Messages returns a copy of the ordered message sequence.
func (r *Reconciler) Messages() []model.ChatMessage {
	return slices.Clone(r.messages)
}

// Conversations returns a copy of the conversation list.
func (r *Reconciler) Conversations() []model.ConversationSummary {
	return slices.Clone(r.conversations)
}

func (r *Reconciler) moveToFront(conversation model.ConversationSummary) {
	if i := r.indexOf(conversation.ID); i >= 0 {
		r.conversations = slices.Delete(r.conversations, i, i+1)
	}
	r.conversations = slices.Insert(r.conversations, 0, conversation)
}

func (r *Reconciler) indexOf(id string) int {
	return slices.IndexFunc(r.conversations, func(c model.ConversationSummary) bool { return c.ID == id })
}
