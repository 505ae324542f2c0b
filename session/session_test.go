package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisdar/api"
	"wisdar/model"
	"wisdar/storage"
	"wisdar/store"
)

// fakeBackend is a minimal Wisdar server: login, conversation listing and
// sending, agent execution and media downloads. The push stream endpoint
// holds the connection open without sending anything.
type fakeBackend struct {
	mux *http.ServeMux

	conversations []map[string]any
	messages      map[string][]map[string]any

	initiateCalls int
	postCalls     int
	failSends     bool

	mu           sync.Mutex
	streamOpens  int
	streamCloses int
}

// streamState reports how many push connections were opened and how many the
// client has since dropped.
func (b *fakeBackend) streamState() (opens, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streamOpens, b.streamCloses
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		mux:      http.NewServeMux(),
		messages: map[string][]map[string]any{},
	}
	b.mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"user": map[string]any{
				"id": 1, "email": "dev@wisdar.test", "full_name": "Dev",
				"role": "user", "credits": 12.5,
			},
		})
	})
	b.mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(b.conversations)
	})
	b.mux.HandleFunc("/api/conversations/initiate", func(w http.ResponseWriter, r *http.Request) {
		b.initiateCalls++
		if b.failSends {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"message": "model unavailable"})
			return
		}
		_ = r.ParseMultipartForm(1 << 20)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"new_conversation": map[string]any{
				"id": 42, "title": r.FormValue("content"), "ai_model_id": r.FormValue("ai_model_id"),
			},
			"user_message": map[string]any{
				"id": 100, "role": "user", "content": r.FormValue("content"), "status": "complete",
			},
		})
	})
	b.mux.HandleFunc("/api/conversations/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/conversations/"), "/")
		if len(parts) != 2 || parts[1] != "messages" {
			http.NotFound(w, r)
			return
		}
		id := parts[0]
		if r.Method == http.MethodPost {
			b.postCalls++
			if b.failSends {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{"message": "model unavailable"})
				return
			}
			_ = r.ParseMultipartForm(1 << 20)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user_message": map[string]any{
					"id": 200, "role": "user", "content": r.FormValue("content"), "status": "complete",
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(b.messages[id])
	})
	b.mux.HandleFunc("/api/stream/events", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.streamOpens++
		b.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
		b.mu.Lock()
		b.streamCloses++
		b.mu.Unlock()
	})
	b.mux.HandleFunc("/api/agents/9/execute", func(w http.ResponseWriter, r *http.Request) {
		var run map[string]any
		_ = json.NewDecoder(r.Body).Decode(&run)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 77, "title": "Summarizer run",
			"temp_conversation_id": run["temp_conversation_id"],
		})
	})
	b.mux.HandleFunc("/api/uploads/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png bytes"))
	})
	return b
}

func newTestSession(t *testing.T, b *fakeBackend) (*Session, *store.Store, *storage.ConversationCache) {
	t.Helper()
	srv := httptest.NewServer(b.mux)
	t.Cleanup(srv.Close)

	cache, err := storage.NewConversationCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	media, err := storage.NewMediaCache(t.TempDir())
	require.NoError(t, err)

	st := store.New(zerolog.Nop())
	s := New(api.New(srv.URL, zerolog.Nop()), st, cache, media, nil, zerolog.Nop())
	t.Cleanup(s.Close)

	_, err = s.Login(context.Background(), "dev@wisdar.test", "pw")
	require.NoError(t, err)
	return s, st, cache
}

func TestSessionLoginStoresUser(t *testing.T) {
	_, st, _ := newTestSession(t, newFakeBackend())

	user := st.User()
	require.NotNil(t, user)
	assert.Equal(t, "dev@wisdar.test", user.Email)
	assert.InDelta(t, 12.5, st.Credits(), 0.001)
}

func TestSessionBootstrapLoadsAndNormalizes(t *testing.T) {
	b := newFakeBackend()
	b.conversations = []map[string]any{
		{"id": 5, "title": "First", "ai_model_id": "gpt-4o"},
		{"id": 6, "title": "Second", "ai_model_id": "gpt-4o"},
	}
	b.messages["5"] = []map[string]any{
		{"id": 50, "role": "user", "content": "hi", "status": "complete"},
		{"id": 51, "role": "assistant", "content": "partial", "status": "streaming"},
	}
	s, st, cache := newTestSession(t, b)

	require.NoError(t, s.Bootstrap(context.Background()))

	active, ok := st.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, model.ID("5"), active.ID)
	require.Len(t, active.Messages, 2)
	// An in-flight status from a dead stream settles to complete on load.
	assert.Equal(t, model.StatusComplete, active.Messages[1].Status)

	cached, err := cache.LoadConversations()
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestSessionStreamOutlivesBootstrapContext(t *testing.T) {
	b := newFakeBackend()
	s, _, _ := newTestSession(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Bootstrap(ctx))
	require.Eventually(t, func() bool {
		opens, _ := b.streamState()
		return opens == 1
	}, time.Second, 10*time.Millisecond)

	// The bootstrap context settles right after the fetches; the push
	// connection is tied to the session, so canceling it drops nothing.
	cancel()
	time.Sleep(100 * time.Millisecond)
	opens, closes := b.streamState()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 0, closes)

	s.Close()
	require.Eventually(t, func() bool {
		_, closes := b.streamState()
		return closes == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSessionWarmStartShowsCachedConversations(t *testing.T) {
	b := newFakeBackend()
	s, st, cache := newTestSession(t, b)
	require.NoError(t, cache.SaveConversations([]model.Conversation{
		{ID: "5", Title: "From last time"},
	}))
	require.NoError(t, cache.SaveMessages("5", []model.Message{
		{ID: "50", Role: model.RoleUser, Content: "hi", Status: model.StatusComplete},
	}))

	s.warmStart()

	active, ok := st.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, "From last time", active.Title)
	require.Len(t, active.Messages, 1)
	assert.Equal(t, "hi", active.Messages[0].Content)
}

func TestSessionSendPromotesNewConversation(t *testing.T) {
	b := newFakeBackend()
	s, st, _ := newTestSession(t, b)

	s.StartConversation("gpt-4o")
	require.NoError(t, s.SendMessage(context.Background(), "hello", ""))

	assert.Equal(t, 1, b.initiateCalls)
	assert.Zero(t, b.postCalls)

	active, ok := st.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, model.ID("42"), active.ID)
	assert.Equal(t, "gpt-4o", active.AIModelID)
	require.Len(t, active.Messages, 2)
	assert.Equal(t, model.ID("100"), active.Messages[0].ID)
	assert.Equal(t, model.ID("assistant-100"), active.Messages[1].ID)
	assert.Equal(t, model.StatusThinking, active.Messages[1].Status)
}

func TestSessionSendIntoExistingConversation(t *testing.T) {
	b := newFakeBackend()
	b.conversations = []map[string]any{{"id": 5, "title": "First", "ai_model_id": "gpt-4o"}}
	s, st, _ := newTestSession(t, b)
	require.NoError(t, s.Bootstrap(context.Background()))

	require.NoError(t, s.SendMessage(context.Background(), "again", ""))

	assert.Equal(t, 1, b.postCalls)
	active, _ := st.ActiveConversation()
	require.Len(t, active.Messages, 2)
	assert.Equal(t, model.ID("200"), active.Messages[0].ID)
	assert.Equal(t, "again", active.Messages[0].Content)
}

func TestSessionSendRollsBackOnError(t *testing.T) {
	b := newFakeBackend()
	b.conversations = []map[string]any{{"id": 5, "title": "First", "ai_model_id": "gpt-4o"}}
	b.failSends = true
	s, st, _ := newTestSession(t, b)
	require.NoError(t, s.Bootstrap(context.Background()))

	err := s.SendMessage(context.Background(), "doomed", "")
	require.Error(t, err)

	active, _ := st.ActiveConversation()
	assert.Empty(t, active.Messages, "optimistic messages must be rolled back")
}

func TestSessionSendWithoutActiveConversation(t *testing.T) {
	s, _, _ := newTestSession(t, newFakeBackend())
	require.Error(t, s.SendMessage(context.Background(), "hello", ""))
}

func TestSessionExecuteAgentMigratesPlaceholder(t *testing.T) {
	b := newFakeBackend()
	s, st, _ := newTestSession(t, b)

	agent := model.Agent{ID: 9, Name: "Summarizer"}
	require.NoError(t, s.ExecuteAgent(context.Background(), agent, api.ExecuteAgentRequest{
		UserInput: "summarize this",
	}))

	active, ok := st.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, model.ID("77"), active.ID)
	for _, c := range st.Conversations() {
		assert.NotEqual(t, model.AgentConversationID(9), c.ID)
	}
}

func TestSessionFetchAttachmentCachesDownload(t *testing.T) {
	s, _, _ := newTestSession(t, newFakeBackend())

	attachment := &model.Attachment{
		FileName: "chart.png",
		FileType: "image/png",
		FileURL:  "/api/uploads/chart.png",
	}
	path, err := s.FetchAttachment(context.Background(), "100", attachment)
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	again, err := s.FetchAttachment(context.Background(), "100", attachment)
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestSessionLogoutForgetsAccountState(t *testing.T) {
	b := newFakeBackend()
	b.conversations = []map[string]any{{"id": 5, "title": "First"}}
	s, st, cache := newTestSession(t, b)
	require.NoError(t, s.Bootstrap(context.Background()))

	s.Logout()

	assert.Nil(t, st.User())
	cached, err := cache.LoadConversations()
	require.NoError(t, err)
	assert.Empty(t, cached)
}
