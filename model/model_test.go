package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ID
	}{
		{name: "numeric id", in: `{"id": 42}`, want: "42"},
		{name: "string id", in: `{"id": "temp-user-abc"}`, want: "temp-user-abc"},
		{name: "sentinel", in: `{"id": "new"}`, want: NewConversationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg struct {
				ID ID `json:"id"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.in), &msg))
			assert.Equal(t, tt.want, msg.ID)
		})
	}
}

func TestIDMarshalRoundTrip(t *testing.T) {
	// Numeric ids must go back out as numbers so the backend accepts them.
	data, err := json.Marshal(ID("42"))
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))

	data, err = json.Marshal(ID("temp-user-abc"))
	require.NoError(t, err)
	assert.Equal(t, `"temp-user-abc"`, string(data))
}

func TestAssistantPlaceholderID(t *testing.T) {
	userID := TempUserMessageID()
	assert.True(t, strings.HasPrefix(string(userID), "temp-user-"))
	assert.Equal(t, ID("assistant-"+string(userID)), AssistantPlaceholderID(userID))
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from MessageStatus
		to   MessageStatus
		ok   bool
	}{
		{name: "uploading to waiting", from: StatusUploading, to: StatusWaiting, ok: true},
		{name: "waiting to thinking", from: StatusWaiting, to: StatusThinking, ok: true},
		{name: "waiting to transcribing", from: StatusWaiting, to: StatusTranscribing, ok: true},
		{name: "thinking to streaming", from: StatusThinking, to: StatusStreaming, ok: true},
		{name: "streaming to complete", from: StatusStreaming, to: StatusComplete, ok: true},
		{name: "skip ahead", from: StatusUploading, to: StatusStreaming, ok: true},
		{name: "no going back", from: StatusStreaming, to: StatusThinking, ok: false},
		{name: "complete is terminal", from: StatusComplete, to: StatusStreaming, ok: false},
		{name: "failed is terminal", from: StatusFailed, to: StatusThinking, ok: false},
		{name: "failure from any non-terminal", from: StatusThinking, to: StatusFailed, ok: true},
		{name: "error from streaming", from: StatusStreaming, to: StatusError, ok: true},
		{name: "error from complete rejected", from: StatusComplete, to: StatusError, ok: false},
		{name: "unknown status", from: MessageStatus("bogus"), to: StatusComplete, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	// The backend emits zone-less isoformat; history loaded from other
	// clients may be RFC 3339.
	assert.False(t, ParseTimestamp("2025-06-01T10:00:00.123456").IsZero())
	assert.False(t, ParseTimestamp("2025-06-01T10:00:00Z").IsZero())
	assert.True(t, ParseTimestamp("not a time").IsZero())
}
