package stream

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisdar/model"
	"wisdar/store"
)

type fakeMediaSink struct {
	saved map[model.ID][]byte
}

func (f *fakeMediaSink) SaveAudio(messageID model.ID, data []byte) (string, error) {
	if f.saved == nil {
		f.saved = map[model.ID][]byte{}
	}
	f.saved[messageID] = data
	return "/cache/audio/" + messageID.String() + ".mp3", nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.Store, *fakeMediaSink) {
	t.Helper()
	s := store.New(zerolog.Nop())
	media := &fakeMediaSink{}
	return NewDispatcher(s, media, nil, zerolog.Nop()), s, media
}

func findMessage(t *testing.T, s *store.Store, id model.ID) model.Message {
	t.Helper()
	for _, c := range s.Conversations() {
		for _, m := range c.Messages {
			if m.ID == id {
				return m
			}
		}
	}
	t.Fatalf("message %s not found", id)
	return model.Message{}
}

func TestDispatcherStreamLifecycle(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{
			ID:     "1",
			Active: true,
			Messages: []model.Message{
				{ID: "u1", Role: model.RoleUser, Status: model.StatusComplete},
				{ID: "assistant-u1", Role: model.RoleAssistant, Status: model.StatusThinking},
			},
		}}
	})

	d.HandleFrame("stream_start", []byte(`{"message": {"id": 9, "conversation_id": 1, "role": "assistant", "content": "Hel"}}`))
	d.HandleFrame("stream_chunk", []byte(`{"message_id": 9, "content": "lo"}`))
	d.HandleFrame("stream_end", []byte(`{"message_id": 9}`))

	got := findMessage(t, s, "9")
	assert.Equal(t, "Hello", got.Content)
	assert.Equal(t, model.StatusComplete, got.Status)
}

func TestDispatcherCreditsUpdate(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	d.Dispatch(&CreditsUpdate{Credits: 12.25}, time.Now())
	assert.Equal(t, 12.25, s.Credits())
}

func TestDispatcherTaskFailed(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{
			ID:     "1",
			Active: true,
			Messages: []model.Message{{
				ID:          "assistant-temp-42",
				Role:        model.RoleAssistant,
				Status:      model.StatusThinking,
				JobStatus:   "queued",
				JobMetadata: map[string]any{"position": 3.0},
			}},
		}}
	})

	var notifiedTitle, notifiedMessage string
	d.notify = func(title, message string) {
		notifiedTitle, notifiedMessage = title, message
	}

	d.Dispatch(&TaskFailed{MessageID: "assistant-temp-42", Message: "rate_limited"}, time.Now())

	got := findMessage(t, s, "assistant-temp-42")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "rate_limited", got.Content)
	assert.Empty(t, got.JobStatus)
	assert.Nil(t, got.JobMetadata)
	assert.Equal(t, "Task failed", notifiedTitle)
	assert.Equal(t, "rate_limited", notifiedMessage)
}

// Transcription completion finalizes the user message and moves the paired
// assistant placeholder to thinking.
func TestDispatcherTranscriptionPair(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{
			ID:     "1",
			Active: true,
			Messages: []model.Message{
				{ID: "31", Role: model.RoleUser, Status: model.StatusWaiting},
				{ID: "assistant-31", Role: model.RoleAssistant, Status: model.StatusWaiting},
			},
		}}
	})

	d.Dispatch(&TranscriptionStarted{MessageID: "31"}, time.Now())
	assert.Equal(t, model.StatusTranscribing, findMessage(t, s, "31").Status)

	d.Dispatch(&TranscriptionComplete{MessageID: "31", Content: "spoken words"}, time.Now())

	user := findMessage(t, s, "31")
	assert.Equal(t, model.StatusComplete, user.Status)
	assert.Equal(t, "spoken words", user.Content)
	assert.Equal(t, model.StatusThinking, findMessage(t, s, "assistant-31").Status)
}

func TestDispatcherVideoProgressMergesMetadata(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{
			ID:     "1",
			Active: true,
			Messages: []model.Message{{
				ID:          "7",
				Role:        model.RoleAssistant,
				Status:      model.StatusThinking,
				JobMetadata: map[string]any{"stage": "queued", "eta": 40.0},
			}},
		}}
	})

	d.Dispatch(&VideoProgressUpdate{
		MessageID:   "7",
		JobStatus:   "rendering",
		JobMetadata: map[string]any{"stage": "rendering"},
	}, time.Now())

	got := findMessage(t, s, "7")
	assert.Equal(t, "rendering", got.JobStatus)
	assert.Equal(t, "rendering", got.JobMetadata["stage"])
	assert.Equal(t, 40.0, got.JobMetadata["eta"])
}

func TestDispatcherImageCompleteSetsConversationContext(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{
			ID:     "5",
			Active: true,
			Messages: []model.Message{{
				ID:        "20",
				Role:      model.RoleAssistant,
				Status:    model.StatusThinking,
				JobStatus: "generating",
			}},
		}}
	})

	d.HandleFrame("image_complete", []byte(`{"message_id": 20, "conversation_id": 5, "media_url": "/media/gen/20.png"}`))

	got := findMessage(t, s, "20")
	assert.Equal(t, model.StatusComplete, got.Status)
	assert.Empty(t, got.JobStatus)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, "/media/gen/20.png", got.Attachment.FileURL)
	assert.Equal(t, "image/png", got.Attachment.FileType)

	conversations := s.Conversations()
	require.Len(t, conversations, 1)
	assert.Equal(t, "/media/gen/20.png", conversations[0].ImageContextURL)
}

func TestDispatcherTTSAssemblesAudio(t *testing.T) {
	d, s, media := newTestDispatcher(t)
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{
			ID:     "1",
			Active: true,
			Messages: []model.Message{{
				ID:     "15",
				Role:   model.RoleAssistant,
				Status: model.StatusThinking,
			}},
		}}
	})

	d.Dispatch(&TTSStart{MessageID: "15"}, time.Now())
	d.Dispatch(&TTSChunk{MessageID: "15", Audio: base64.StdEncoding.EncodeToString([]byte("ID3"))}, time.Now())
	d.Dispatch(&TTSChunk{MessageID: "15", Audio: base64.StdEncoding.EncodeToString([]byte("tag"))}, time.Now())
	d.Dispatch(&TTSEnd{MessageID: "15"}, time.Now())

	assert.Equal(t, []byte("ID3tag"), media.saved["15"])

	got := findMessage(t, s, "15")
	assert.Equal(t, model.StatusComplete, got.Status)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, "/cache/audio/15.mp3", got.Attachment.LocalPath)
	assert.Equal(t, "audio/mpeg", got.Attachment.FileType)
}

func TestDispatcherNewMessageForEdit(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{ID: "3", Active: true}}
	})

	d.HandleFrame("new_message_for_edit", []byte(`{"conversation_id": 3, "message": {"id": 44, "role": "assistant", "content": "draft"}}`))

	got := findMessage(t, s, "44")
	assert.Equal(t, "draft", got.Content)
	assert.Equal(t, model.StatusComplete, got.Status)
}

func TestDispatcherDropsUnknownAndMalformedFrames(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{ID: "1", Active: true}}
	})

	d.HandleFrame("galaxy_brain", []byte(`{"x": 1}`))
	d.HandleFrame("stream_chunk", []byte(`not json`))

	require.Len(t, s.Conversations(), 1)
	assert.Empty(t, s.Conversations()[0].Messages)
}

func TestDispatcherResetClearsBufferedState(t *testing.T) {
	d, _, media := newTestDispatcher(t)

	d.Dispatch(&StreamChunk{MessageID: "pending", Content: "x"}, time.Now())
	d.Dispatch(&TTSStart{MessageID: "15"}, time.Now())
	require.Equal(t, 1, d.reconciler.PendingCount("pending"))

	d.Reset()

	assert.Zero(t, d.reconciler.PendingCount("pending"))

	// Audio assembled after reset starts from nothing.
	d.Dispatch(&TTSEnd{MessageID: "15"}, time.Now())
	assert.Empty(t, media.saved)
}
