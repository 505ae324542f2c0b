package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisdar/model"
)

func newTestCache(t *testing.T) *ConversationCache {
	t.Helper()
	cache, err := NewConversationCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestCacheConversationRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	saved := []model.Conversation{
		{ID: "2", Title: "Pinned one", CreatedAt: "2026-08-30T10:00:00", AIModelID: "gpt-4o", Pinned: true},
		{ID: "1", Title: "Older"},
	}
	require.NoError(t, cache.SaveConversations(saved))

	loaded, err := cache.LoadConversations()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, model.ID("2"), loaded[0].ID)
	assert.True(t, loaded[0].Pinned)
	assert.Equal(t, "gpt-4o", loaded[0].AIModelID)
	assert.Equal(t, model.ID("1"), loaded[1].ID)
}

func TestCacheMessagesRoundTripForcesTerminalStatus(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.SaveConversations([]model.Conversation{{ID: "1", Title: "c"}}))

	messages := []model.Message{
		{ID: "10", Role: model.RoleUser, Content: "hi", Status: model.StatusComplete},
		{ID: "11", Role: model.RoleAssistant, Content: "partial", Status: model.StatusStreaming},
		{ID: "12", Role: model.RoleAssistant, Content: "nope", Status: model.StatusFailed,
			Attachment: &model.Attachment{FileName: "a.mp3", FileType: "audio/mpeg", FileURL: "/api/uploads/a.mp3"}},
	}
	require.NoError(t, cache.SaveMessages("1", messages))

	loaded, err := cache.LoadMessages("1")
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	// Cached history is terminal: a status caught mid-stream loads complete.
	assert.Equal(t, model.StatusComplete, loaded[1].Status)
	assert.Equal(t, model.StatusFailed, loaded[2].Status)
	require.NotNil(t, loaded[2].Attachment)
	assert.Equal(t, "/api/uploads/a.mp3", loaded[2].Attachment.FileURL)
	assert.Equal(t, model.ID("1"), loaded[0].ConversationID)
}

func TestCachePrunesRemovedConversations(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.SaveConversations([]model.Conversation{{ID: "1"}, {ID: "2"}}))
	require.NoError(t, cache.SaveMessages("1", []model.Message{{ID: "10", Role: model.RoleUser}}))
	require.NoError(t, cache.SaveMessages("2", []model.Message{{ID: "20", Role: model.RoleUser}}))

	// Conversation 2 disappears server-side.
	require.NoError(t, cache.SaveConversations([]model.Conversation{{ID: "1"}}))

	kept, err := cache.LoadMessages("1")
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	gone, err := cache.LoadMessages("2")
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestCacheClear(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.SaveConversations([]model.Conversation{{ID: "1"}}))
	require.NoError(t, cache.SaveMessages("1", []model.Message{{ID: "10", Role: model.RoleUser}}))

	require.NoError(t, cache.Clear())

	conversations, err := cache.LoadConversations()
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestSearchAllConversations(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.SaveConversations([]model.Conversation{
		{ID: "1", Title: "Travel plans"},
		{ID: "2", Title: "Recipes"},
	}))
	require.NoError(t, cache.SaveMessages("1", []model.Message{
		{ID: "10", Role: model.RoleUser, Content: "Find flights to Lisbon"},
		{ID: "11", Role: model.RoleAssistant, Content: "Here are some options for Lisbon."},
	}))
	require.NoError(t, cache.SaveMessages("2", []model.Message{
		{ID: "20", Role: model.RoleUser, Content: "Pasta with garlic"},
	}))

	index := NewSearchIndex(cache)
	matches, err := index.SearchAllConversations("lisbon")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, model.ID("1"), matches[0].ConversationID)
	assert.Equal(t, "Travel plans", matches[0].ConversationTitle)

	empty, err := index.SearchAllConversations("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
