// Package store holds the conversation state for a session. It is the sole
// mutation point for chat state visible to the UI: the stream dispatcher, the
// API client callbacks and key handlers all go through it.
//
// Every mutation is a pure transform of the previous snapshot taken under the
// store lock, so concurrent updates to disjoint conversations or messages are
// safe by construction; two in-flight updates to the same message id resolve
// last-write-wins. Subscribers are notified synchronously after each mutation,
// outside the lock.
package store

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"wisdar/model"
)

// Store is an explicitly constructed state container. It is created at
// session start and discarded at logout.
type Store struct {
	mu            sync.Mutex
	conversations []model.Conversation
	user          *model.User
	credits       float64

	listenerMu   sync.Mutex
	listeners    map[int]func()
	nextListener int

	log zerolog.Logger
}

// New creates an empty store.
func New(log zerolog.Logger) *Store {
	return &Store{
		listeners: make(map[int]func()),
		log:       log,
	}
}

// Subscribe registers fn to run after every mutation. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify() {
	s.listenerMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Conversations returns a snapshot of the conversation list. The slice and
// each message slice are copies; callers must not reach back into the store
// through them.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneConversations(s.conversations)
}

// ActiveConversation returns the active conversation, if any.
func (s *Store) ActiveConversation() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.Active {
			out := c
			out.Messages = append([]model.Message(nil), c.Messages...)
			return out, true
		}
	}
	return model.Conversation{}, false
}

// SetConversations replaces the conversation list via a pure transform of the
// previous list.
func (s *Store) SetConversations(transform func(prev []model.Conversation) []model.Conversation) {
	s.mu.Lock()
	s.conversations = transform(cloneConversations(s.conversations))
	s.mu.Unlock()
	s.notify()
}

// SelectConversation marks id active and everything else inactive, matching
// the at-most-one-active invariant.
func (s *Store) SelectConversation(id model.ID) {
	s.mu.Lock()
	for i := range s.conversations {
		s.conversations[i].Active = s.conversations[i].ID == id
	}
	s.mu.Unlock()
	s.notify()
}

// SetConversationMessages replaces the message sequence of one conversation,
// used when history is fetched. History statuses are terminal.
func (s *Store) SetConversationMessages(id model.ID, messages []model.Message) {
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID != id {
			continue
		}
		msgs := append([]model.Message(nil), messages...)
		for j := range msgs {
			if msgs[j].Status == "" {
				msgs[j].Status = model.StatusComplete
			}
		}
		s.conversations[i].Messages = msgs
		break
	}
	s.mu.Unlock()
	s.notify()
}

// AddOptimisticMessages appends the optimistic user message and the assistant
// placeholder to the target conversation.
func (s *Store) AddOptimisticMessages(conversationID model.ID, userMsg, assistantMsg model.Message) {
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations[i].Messages = append(s.conversations[i].Messages, userMsg, assistantMsg)
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// SyncPayload carries the server's confirmation of a message send.
type SyncPayload struct {
	IsNewConversation bool
	TempUserMessageID model.ID
	RealUserMessage   model.Message
	// NewConversation is the confirmed record for a brand-new conversation;
	// required when IsNewConversation is true.
	NewConversation *model.Conversation
}

// SyncRealMessage reconciles the optimistic entries with the server's
// confirmed ones. For a brand-new conversation it migrates the sentinel "new"
// entry to the server-assigned id in place, preserving the locally selected
// model. The assistant placeholder's id is only rewritten while it has not
// started streaming: if stream_start won the race the placeholder already
// carries its permanent id and must not be touched.
func (s *Store) SyncRealMessage(p SyncPayload) {
	s.mu.Lock()
	if p.IsNewConversation && p.NewConversation != nil {
		idx := -1
		for i, c := range s.conversations {
			if c.ID == model.NewConversationID || c.ID == p.NewConversation.ID {
				idx = i
				break
			}
		}
		if idx >= 0 {
			existing := s.conversations[idx]
			final := *p.NewConversation
			final.AIModelID = preferNonEmpty(existing.AIModelID, final.AIModelID)
			final.Active = true
			final.Messages = syncMessages(existing.Messages, p.TempUserMessageID, p.RealUserMessage)
			s.conversations[idx] = final
			for i := range s.conversations {
				if i != idx {
					s.conversations[i].Active = false
				}
			}
		}
	} else {
		for i := range s.conversations {
			if containsMessage(s.conversations[i].Messages, p.TempUserMessageID) {
				s.conversations[i].Messages = syncMessages(s.conversations[i].Messages, p.TempUserMessageID, p.RealUserMessage)
			}
		}
	}
	s.mu.Unlock()
	s.notify()
}

func syncMessages(messages []model.Message, tempUserID model.ID, real model.Message) []model.Message {
	out := append([]model.Message(nil), messages...)
	for i, m := range out {
		switch {
		case m.ID == tempUserID:
			real.Status = model.StatusComplete
			out[i] = real
		case m.Status == model.StatusStreaming:
			// stream_start arrived before the HTTP response; the message
			// already has its permanent id.
		case m.ID == model.AssistantPlaceholderID(tempUserID):
			out[i].ID = model.AssistantPlaceholderID(real.ID)
		}
	}
	return out
}

// RemoveOptimisticMessagesOnError deletes the optimistic pair after a failed
// send, restoring the pre-send message list.
func (s *Store) RemoveOptimisticMessagesOnError(conversationID, userMessageID, assistantMessageID model.ID) {
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID != conversationID {
			continue
		}
		filtered := s.conversations[i].Messages[:0:0]
		for _, m := range s.conversations[i].Messages {
			if m.ID != userMessageID && m.ID != assistantMessageID {
				filtered = append(filtered, m)
			}
		}
		s.conversations[i].Messages = filtered
	}
	s.mu.Unlock()
	s.notify()
}

// MessageUpdate is a partial message; nil fields are left untouched.
// ClearJob resets job status and metadata regardless of the other fields.
type MessageUpdate struct {
	ID             *model.ID
	Status         *model.MessageStatus
	Content        *string
	Attachment     *model.Attachment
	UploadProgress *int
	JobStatus      *string
	JobMetadata    map[string]any
	ClearJob       bool
}

// UpdateMessage shallow-merges update into the message with the given id,
// scanning all conversations. Message ids are unique within a session, so the
// first match wins.
func (s *Store) UpdateMessage(id model.ID, update MessageUpdate) {
	s.mu.Lock()
	applied := false
	for i := range s.conversations {
		for j := range s.conversations[i].Messages {
			if s.conversations[i].Messages[j].ID != id {
				continue
			}
			applyUpdate(&s.conversations[i].Messages[j], update)
			applied = true
			break
		}
		if applied {
			break
		}
	}
	s.mu.Unlock()
	if !applied {
		s.log.Debug().Str("message_id", id.String()).Msg("update for unknown message dropped")
	}
	s.notify()
}

func applyUpdate(m *model.Message, u MessageUpdate) {
	if u.ID != nil {
		m.ID = *u.ID
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.Content != nil {
		m.Content = *u.Content
	}
	if u.Attachment != nil {
		m.Attachment = u.Attachment
	}
	if u.UploadProgress != nil {
		m.UploadProgress = *u.UploadProgress
	}
	if u.JobStatus != nil {
		m.JobStatus = *u.JobStatus
	}
	if u.JobMetadata != nil {
		if m.JobMetadata == nil {
			m.JobMetadata = make(map[string]any, len(u.JobMetadata))
		}
		for k, v := range u.JobMetadata {
			m.JobMetadata[k] = v
		}
	}
	if u.ClearJob {
		m.JobStatus = ""
		m.JobMetadata = nil
	}
}

// StartStreaming rebinds the pending assistant placeholder to the
// server-assigned message and marks it streaming. The placeholder may still
// sit in the "new" draft when the stream beats the send response, so the
// draft is checked alongside the target conversation. When no placeholder
// exists anywhere (a server-initiated message) the message is appended to
// the exact target conversation only; an empty draft never captures it.
func (s *Store) StartStreaming(conversationID model.ID, msg model.Message) {
	msg.Status = model.StatusStreaming
	s.mu.Lock()
	replaced := false
	for i := range s.conversations {
		c := &s.conversations[i]
		if c.ID != conversationID && c.ID != model.NewConversationID {
			continue
		}
		for j := range c.Messages {
			switch c.Messages[j].Status {
			case model.StatusThinking, model.StatusTranscribing, model.StatusExtractingAudio, model.StatusWaiting:
				c.Messages[j] = msg
				replaced = true
			}
			if replaced {
				break
			}
		}
		if replaced {
			break
		}
	}
	if !replaced {
		for i := range s.conversations {
			if s.conversations[i].ID == conversationID {
				s.conversations[i].Messages = append(s.conversations[i].Messages, msg)
				break
			}
		}
	}
	s.mu.Unlock()
	s.notify()
}

// AppendStreamChunk appends content to a streaming message. Chunks addressed
// to messages that are not streaming are ignored; ordering is the stream
// reconciler's responsibility, not the store's.
func (s *Store) AppendStreamChunk(messageID model.ID, content string) {
	s.mu.Lock()
	for i := range s.conversations {
		for j := range s.conversations[i].Messages {
			m := &s.conversations[i].Messages[j]
			if m.ID == messageID && m.Status == model.StatusStreaming {
				m.Content += content
			}
		}
	}
	s.mu.Unlock()
	s.notify()
}

// EndStreaming marks the message complete.
func (s *Store) EndStreaming(messageID model.ID) {
	status := model.StatusComplete
	s.UpdateMessage(messageID, MessageUpdate{Status: &status})
}

// PinConversation toggles the pin flag and re-sorts the list: pinned
// conversations first in their original relative order, the rest by creation
// time descending.
func (s *Store) PinConversation(id model.ID) {
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations[i].Pinned = !s.conversations[i].Pinned
			break
		}
	}
	sortConversations(s.conversations)
	s.mu.Unlock()
	s.notify()
}

func sortConversations(conversations []model.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.Pinned {
			// Pinned peers keep their original relative order.
			return false
		}
		return a.CreatedTime().After(b.CreatedTime())
	})
}

// RemoveConversation deletes a conversation. If it was active, the new first
// conversation becomes active.
func (s *Store) RemoveConversation(id model.ID) {
	s.mu.Lock()
	wasActive := false
	filtered := s.conversations[:0:0]
	for _, c := range s.conversations {
		if c.ID == id {
			wasActive = c.Active
			continue
		}
		filtered = append(filtered, c)
	}
	s.conversations = filtered
	if wasActive && len(s.conversations) > 0 {
		for i := range s.conversations {
			s.conversations[i].Active = i == 0
		}
	}
	s.mu.Unlock()
	s.notify()
}

// AppendMessage appends a server-pushed message to the conversation it
// belongs to. Unknown conversations are ignored; the next history fetch will
// pick the message up.
func (s *Store) AppendMessage(conversationID model.ID, msg model.Message) {
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations[i].Messages = append(s.conversations[i].Messages, msg)
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// SetImageContext records the URL of the last generated image on the
// conversation so later turns can reference it.
func (s *Store) SetImageContext(conversationID model.ID, url string) {
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations[i].ImageContextURL = url
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// SetUser records the authenticated user and their credit balance.
func (s *Store) SetUser(u *model.User) {
	s.mu.Lock()
	s.user = u
	if u != nil {
		s.credits = u.Credits
	}
	s.mu.Unlock()
	s.notify()
}

// User returns the authenticated user, or nil before login.
func (s *Store) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetCredits replaces the credit balance (credits_update events carry the new
// absolute balance, not a delta).
func (s *Store) SetCredits(balance float64) {
	s.mu.Lock()
	s.credits = balance
	if s.user != nil {
		s.user.Credits = balance
	}
	s.mu.Unlock()
	s.notify()
}

// Credits returns the current balance.
func (s *Store) Credits() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits
}

func cloneConversations(in []model.Conversation) []model.Conversation {
	out := append([]model.Conversation(nil), in...)
	for i := range out {
		out[i].Messages = append([]model.Message(nil), out[i].Messages...)
	}
	return out
}

func containsMessage(messages []model.Message, id model.ID) bool {
	for _, m := range messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func preferNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
