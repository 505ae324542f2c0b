// Package session ties the API client, the push stream, the conversation
// store and the local caches together into the client's top-level lifecycle:
// login, bootstrap, optimistic sends, conversation switching and teardown.
// The UI talks to the session; the session talks to everything else.
package session

import (
	"context"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"wisdar/api"
	"wisdar/model"
	"wisdar/storage"
	"wisdar/store"
	"wisdar/stream"
)

// Session owns one authenticated connection to the backend. The conversation
// cache and media cache are optional; a nil cache disables warm starts and
// local media respectively.
type Session struct {
	api    *api.Client
	store  *store.Store
	cache  *storage.ConversationCache
	media  *storage.MediaCache
	stream *stream.Client
	log    zerolog.Logger

	// The push stream lives for the whole session, not for any one request;
	// it is connected with this context and torn down in Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// New assembles a session. notify may be nil; it receives user-visible
// notifications raised by the push stream (failed jobs, transcriptions).
func New(client *api.Client, st *store.Store, cache *storage.ConversationCache, media *storage.MediaCache, notify stream.Notifier, log zerolog.Logger) *Session {
	var sink stream.MediaSink
	if media != nil {
		sink = media
	}
	dispatcher := stream.NewDispatcher(st, sink, notify, log)
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		api:    client,
		store:  st,
		cache:  cache,
		media:  media,
		stream: stream.NewClient(client.StreamURL(), client.HTTPClient(), dispatcher, log),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// API exposes the REST client for callers that talk to endpoints outside the
// chat lifecycle (catalog, admin, team reports).
func (s *Session) API() *api.Client {
	return s.api
}

// Login authenticates and records the user and credit balance in the store.
func (s *Session) Login(ctx context.Context, email, password string) (*model.User, error) {
	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user := result.User
	s.store.SetUser(&user)
	s.store.SetCredits(user.Credits)
	return &user, nil
}

// Bootstrap populates the store after login: cached conversations first so
// the UI has something to show immediately, then the server's list, then the
// active conversation's messages, and finally the live event stream.
func (s *Session) Bootstrap(ctx context.Context) error {
	s.warmStart()

	conversations, err := s.api.Conversations(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching conversations")
	}
	s.store.SetConversations(func([]model.Conversation) []model.Conversation {
		return conversations
	})
	if s.cache != nil {
		if err := s.cache.SaveConversations(conversations); err != nil {
			s.log.Warn().Err(err).Msg("caching conversations")
		}
	}
	if len(conversations) > 0 {
		if err := s.SelectConversation(ctx, conversations[0].ID); err != nil {
			return err
		}
	}

	// Connect with the session context: the bootstrap request context is
	// canceled as soon as the fetches settle, and the stream must keep
	// reconnecting long after that.
	s.stream.Connect(s.ctx)
	return nil
}

// warmStart loads the cached conversation list so a previous session's state
// is visible before the first network round trip completes.
func (s *Session) warmStart() {
	if s.cache == nil {
		return
	}
	cached, err := s.cache.LoadConversations()
	if err != nil {
		s.log.Warn().Err(err).Msg("loading cached conversations")
		return
	}
	if len(cached) == 0 {
		return
	}
	for i := range cached {
		messages, err := s.cache.LoadMessages(cached[i].ID)
		if err != nil {
			s.log.Warn().Err(err).Stringer("conversation", cached[i].ID).Msg("loading cached messages")
			continue
		}
		cached[i].Messages = messages
	}
	s.store.SetConversations(func([]model.Conversation) []model.Conversation {
		return cached
	})
	s.store.SelectConversation(cached[0].ID)
}

// SelectConversation activates a conversation and makes sure its messages are
// loaded. Unsaved sentinel conversations have nothing to fetch.
func (s *Session) SelectConversation(ctx context.Context, id model.ID) error {
	s.store.SelectConversation(id)
	if id == model.NewConversationID {
		return nil
	}
	messages, err := s.api.Messages(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "fetching messages for conversation %s", id)
	}
	// Anything the server still reports as in flight was orphaned by a
	// previous session; its stream is gone, so show it as settled.
	for i := range messages {
		if !messages[i].Status.Terminal() {
			messages[i].Status = model.StatusComplete
		}
	}
	s.store.SetConversationMessages(id, messages)
	if s.cache != nil {
		if err := s.cache.SaveMessages(id, messages); err != nil {
			s.log.Warn().Err(err).Stringer("conversation", id).Msg("caching messages")
		}
	}
	return nil
}

// StartConversation inserts the unsaved sentinel conversation and activates
// it. The first send promotes it to a real server-side conversation.
func (s *Session) StartConversation(aiModelID string) {
	s.store.SetConversations(func(prev []model.Conversation) []model.Conversation {
		for _, c := range prev {
			if c.ID == model.NewConversationID {
				return prev
			}
		}
		draft := model.Conversation{
			ID:        model.NewConversationID,
			Title:     "New Conversation",
			AIModelID: aiModelID,
			CreatedAt: time.Now().Format(time.RFC3339),
		}
		return append([]model.Conversation{draft}, prev...)
	})
	s.store.SelectConversation(model.NewConversationID)
}

// SendMessage performs an optimistic send into the active conversation: the
// user message and an assistant placeholder appear immediately, the request
// goes out, and the placeholders are either reconciled with the server's
// records or rolled back. The assistant's reply arrives over the stream.
func (s *Session) SendMessage(ctx context.Context, content, attachmentPath string) error {
	active, ok := s.store.ActiveConversation()
	if !ok {
		return errors.New("no active conversation")
	}

	tempID := model.TempUserMessageID()
	assistantID := model.AssistantPlaceholderID(tempID)
	now := time.Now().Format(time.RFC3339)

	userMsg := model.Message{
		ID:             tempID,
		ConversationID: active.ID,
		Role:           model.RoleUser,
		Content:        content,
		Timestamp:      now,
		Status:         model.StatusComplete,
	}
	assistantStatus := model.StatusThinking
	if attachmentPath != "" {
		userMsg.Attachment = &model.Attachment{
			FileName:  filepath.Base(attachmentPath),
			FileType:  mime.TypeByExtension(filepath.Ext(attachmentPath)),
			FileURL:   attachmentPath,
			LocalPath: attachmentPath,
		}
		userMsg.Status = model.StatusUploading
		assistantStatus = model.StatusTranscribing
	}
	assistantMsg := model.Message{
		ID:             assistantID,
		ConversationID: active.ID,
		Role:           model.RoleAssistant,
		Timestamp:      now,
		Status:         assistantStatus,
	}
	s.store.AddOptimisticMessages(active.ID, userMsg, assistantMsg)

	send := api.SendRequest{Content: content, AttachmentPath: attachmentPath}
	if attachmentPath != "" {
		send.OnProgress = func(sent, total int64) {
			if total <= 0 {
				return
			}
			pct := int(sent * 100 / total)
			update := store.MessageUpdate{UploadProgress: &pct}
			if sent >= total {
				status := model.StatusComplete
				update.Status = &status
			}
			s.store.UpdateMessage(tempID, update)
		}
	}

	if active.ID == model.NewConversationID {
		send.AIModelID = active.AIModelID
		result, err := s.api.InitiateConversation(ctx, send)
		if err != nil {
			s.store.RemoveOptimisticMessagesOnError(active.ID, tempID, assistantID)
			return errors.Wrap(err, "starting conversation")
		}
		s.store.SyncRealMessage(store.SyncPayload{
			IsNewConversation: true,
			TempUserMessageID: tempID,
			RealUserMessage:   result.UserMessage,
			NewConversation:   &result.NewConversation,
		})
	} else {
		result, err := s.api.PostMessage(ctx, active.ID, send)
		if err != nil {
			s.store.RemoveOptimisticMessagesOnError(active.ID, tempID, assistantID)
			return errors.Wrap(err, "sending message")
		}
		s.store.SyncRealMessage(store.SyncPayload{
			TempUserMessageID: tempID,
			RealUserMessage:   result.UserMessage,
		})
	}
	s.persist()
	return nil
}

// ExecuteAgent runs an agent inside a synthetic placeholder conversation.
// The server creates the real conversation and echoes the placeholder id
// back so the two can be matched; output then streams in as usual.
func (s *Session) ExecuteAgent(ctx context.Context, agent model.Agent, run api.ExecuteAgentRequest) error {
	placeholderID := model.AgentConversationID(agent.ID)
	run.TempConversationID = placeholderID

	s.store.SetConversations(func(prev []model.Conversation) []model.Conversation {
		for _, c := range prev {
			if c.ID == placeholderID {
				return prev
			}
		}
		placeholder := model.Conversation{
			ID:        placeholderID,
			Title:     agent.Name,
			CreatedAt: time.Now().Format(time.RFC3339),
		}
		return append([]model.Conversation{placeholder}, prev...)
	})
	s.store.SelectConversation(placeholderID)

	result, err := s.api.ExecuteAgent(ctx, agent.ID, run)
	if err != nil {
		s.store.RemoveConversation(placeholderID)
		return errors.Wrapf(err, "executing agent %q", agent.Name)
	}

	// Migrate the placeholder to the server-assigned conversation in place.
	real := result.Conversation
	s.store.SetConversations(func(prev []model.Conversation) []model.Conversation {
		out := append([]model.Conversation(nil), prev...)
		for i := range out {
			if out[i].ID == placeholderID {
				messages := out[i].Messages
				out[i] = real
				out[i].Active = true
				if len(out[i].Messages) == 0 {
					out[i].Messages = messages
				}
				for j := range out[i].Messages {
					out[i].Messages[j].ConversationID = real.ID
				}
			} else {
				out[i].Active = false
			}
		}
		return out
	})
	s.persist()
	return nil
}

// FetchAttachment downloads a message attachment into the media cache and
// records the local path on the message. Repeated calls for the same file
// hit the cache.
func (s *Session) FetchAttachment(ctx context.Context, messageID model.ID, attachment *model.Attachment) (string, error) {
	if attachment == nil || attachment.FileURL == "" {
		return "", errors.New("message has no attachment")
	}
	if s.media == nil {
		return "", errors.New("media cache disabled")
	}
	path, ok := s.media.Path(attachment.FileURL)
	if !ok {
		body, err := s.api.DownloadMedia(ctx, attachment.FileURL)
		if err != nil {
			return "", err
		}
		defer body.Close()
		if path, err = s.media.Store(attachment.FileURL, body); err != nil {
			return "", errors.Wrap(err, "caching attachment")
		}
	}
	fetched := *attachment
	fetched.LocalPath = path
	s.store.UpdateMessage(messageID, store.MessageUpdate{Attachment: &fetched})
	return path, nil
}

// persist writes the store's current state through to the conversation cache.
func (s *Session) persist() {
	if s.cache == nil {
		return
	}
	conversations := persistable(s.store.Conversations())
	if err := s.cache.SaveConversations(conversations); err != nil {
		s.log.Warn().Err(err).Msg("caching conversations")
		return
	}
	for _, c := range conversations {
		if len(c.Messages) == 0 {
			continue
		}
		if err := s.cache.SaveMessages(c.ID, c.Messages); err != nil {
			s.log.Warn().Err(err).Stringer("conversation", c.ID).Msg("caching messages")
		}
	}
}

// persistable drops conversations the server does not know about yet; only
// confirmed conversations belong in the on-disk cache.
func persistable(conversations []model.Conversation) []model.Conversation {
	out := conversations[:0:0]
	for _, c := range conversations {
		if c.ID == model.NewConversationID || strings.HasPrefix(c.ID.String(), "agent-") {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Close disconnects the stream and discards locally cached media. The
// conversation cache survives for the next session's warm start.
func (s *Session) Close() {
	s.cancel()
	s.stream.Close()
	if s.media != nil {
		s.media.Purge()
	}
}

// Logout tears the session down and forgets everything tied to the account:
// the bearer token and the cached conversations.
func (s *Session) Logout() {
	s.Close()
	s.api.Logout()
	if s.cache != nil {
		if err := s.cache.Clear(); err != nil {
			s.log.Warn().Err(err).Msg("clearing conversation cache")
		}
	}
	s.store.SetUser(nil)
}
