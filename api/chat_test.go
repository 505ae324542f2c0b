package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisdar/model"
)

func TestInitiateConversationMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/initiate", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "hello", r.FormValue("content"))
		assert.Equal(t, "gpt-4o", r.FormValue("ai_model_id"))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"new_conversation": map[string]any{"id": 42, "title": "hello", "ai_model_id": "gpt-4o"},
			"user_message":     map[string]any{"id": 100, "role": "user", "content": "hello", "status": "complete"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")
	result, err := c.InitiateConversation(context.Background(), SendRequest{
		Content:   "hello",
		AIModelID: "gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ID("42"), result.NewConversation.ID)
	assert.Equal(t, model.ID("100"), result.UserMessage.ID)
}

func TestPostMessageUploadsAttachmentWithProgress(t *testing.T) {
	payload := []byte("RIFF fake audio bytes")
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "note.webm")
	require.NoError(t, os.WriteFile(audioPath, payload, 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/7/messages", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("attachment")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "note.webm", header.Filename)
		uploaded, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, payload, uploaded)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_message": map[string]any{"id": 101, "role": "user", "status": "transcribing"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")

	var lastSent, lastTotal int64
	result, err := c.PostMessage(context.Background(), "7", SendRequest{
		Content:        "",
		AttachmentPath: audioPath,
		OnProgress: func(sent, total int64) {
			lastSent, lastTotal = sent, total
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ID("101"), result.UserMessage.ID)
	assert.Equal(t, model.StatusTranscribing, result.UserMessage.Status)
	assert.Positive(t, lastTotal)
	assert.Equal(t, lastTotal, lastSent)
}

func TestMessagesDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/3/messages", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": 1, "role": "user", "content": "hi", "status": "complete"},
			{"id": 2, "role": "assistant", "content": "hello", "status": "complete",
			 "attachment": {"fileName": "a.mp3", "fileType": "audio/mpeg", "fileURL": "/api/uploads/a.mp3"}}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")
	messages, err := c.Messages(context.Background(), "3")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.NotNil(t, messages[1].Attachment)
	assert.Equal(t, "/api/uploads/a.mp3", messages[1].Attachment.FileURL)
}
