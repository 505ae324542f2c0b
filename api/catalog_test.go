package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisdar/model"
)

func TestProvidersDecodeNestedServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/providers/", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id": "openai", "name": "OpenAI", "services": [
			{"providerServiceId": 11, "id": "chat", "name": "Chat", "modelId": "gpt-4o",
			 "capabilities": {"vision": true}}
		]}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")
	providers, err := c.Providers(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 1)
	require.Len(t, providers[0].Services, 1)

	service := providers[0].Services[0]
	assert.Equal(t, 11, service.ProviderServiceID)
	assert.Equal(t, "gpt-4o", service.ModelID)
	assert.True(t, service.Capabilities["vision"])
}

func TestExecuteAgentEchoesPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/agents/2/execute", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "agent-2", body["temp_conversation_id"])
		assert.Equal(t, "check this claim", body["user_input"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 55, "title": "Agent: Fact-Checker", "temp_conversation_id": "agent-2"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")
	conversation, err := c.ExecuteAgent(context.Background(), 2, ExecuteAgentRequest{
		TempConversationID: "agent-2",
		UserInput:          "check this claim",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ID("55"), conversation.ID)
	assert.Equal(t, model.ID("agent-2"), conversation.TempConversationID)
}

func TestDownloadMediaAuthenticates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/uploads/voice.mp3", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")
	body, err := c.DownloadMedia(context.Background(), "/api/uploads/voice.mp3")
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), data)
}
