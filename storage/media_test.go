package storage

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaCacheStoreAndRelease(t *testing.T) {
	cache, err := NewMediaCache(t.TempDir())
	require.NoError(t, err)

	local, err := cache.Store("/api/uploads/voice.mp3", strings.NewReader("mp3-bytes"))
	require.NoError(t, err)
	assert.FileExists(t, local)
	assert.True(t, strings.HasSuffix(local, ".mp3"))

	found, ok := cache.Path("/api/uploads/voice.mp3")
	require.True(t, ok)
	assert.Equal(t, local, found)

	cache.Release("/api/uploads/voice.mp3")
	_, ok = cache.Path("/api/uploads/voice.mp3")
	assert.False(t, ok)
	_, err = os.Stat(local)
	assert.True(t, os.IsNotExist(err))
}

func TestMediaCacheSaveAudio(t *testing.T) {
	cache, err := NewMediaCache(t.TempDir())
	require.NoError(t, err)

	local, err := cache.SaveAudio("15", []byte("ID3tag"))
	require.NoError(t, err)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3tag"), data)

	cache.ReleaseAudio("15")
	_, err = os.Stat(local)
	assert.True(t, os.IsNotExist(err))
}

func TestMediaCachePurge(t *testing.T) {
	cache, err := NewMediaCache(t.TempDir())
	require.NoError(t, err)

	a, err := cache.Store("/api/uploads/a.png", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := cache.SaveAudio("9", []byte("b"))
	require.NoError(t, err)

	cache.Purge()

	for _, local := range []string{a, b} {
		_, err := os.Stat(local)
		assert.True(t, os.IsNotExist(err))
	}
}
