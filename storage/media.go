package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"wisdar/model"
)

// MediaCache stores downloaded media artifacts (voice notes, TTS audio,
// generated video and images) as local files. Each remote URL maps to one
// cache file; files are released individually when a message leaves the
// screen and purged together at teardown, so nothing outlives the session
// unless kept deliberately.
type MediaCache struct {
	dir string

	mu    sync.Mutex
	files map[string]string // cache key -> local path
}

// NewMediaCache creates the cache directory (0700) if needed.
func NewMediaCache(dir string) (*MediaCache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "creating media cache directory")
	}
	return &MediaCache{dir: dir, files: make(map[string]string)}, nil
}

// SaveAudio writes assembled TTS audio for a message and returns the local
// path. Implements the stream dispatcher's media sink.
func (m *MediaCache) SaveAudio(messageID model.ID, data []byte) (string, error) {
	return m.save("tts-"+messageID.String()+".mp3", data)
}

// Store writes the contents of r for the given remote URL and returns the
// local path. A second Store for the same URL overwrites the first.
func (m *MediaCache) Store(fileURL string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "reading media")
	}
	return m.save(cacheFileName(fileURL), data)
}

// Path returns the local file for a remote URL, if cached.
func (m *MediaCache) Path(fileURL string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	local, ok := m.files[cacheFileName(fileURL)]
	return local, ok
}

// Release removes one remote URL's cache file.
func (m *MediaCache) Release(fileURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(cacheFileName(fileURL))
}

// ReleaseAudio removes the TTS audio of one message.
func (m *MediaCache) ReleaseAudio(messageID model.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove("tts-" + messageID.String() + ".mp3")
}

// Purge removes every cached file. Called on logout and shutdown.
func (m *MediaCache) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.files {
		m.remove(key)
	}
}

func (m *MediaCache) save(name string, data []byte) (string, error) {
	local := filepath.Join(m.dir, name)
	if err := os.WriteFile(local, data, 0600); err != nil {
		return "", errors.Wrap(err, "writing media file")
	}
	m.mu.Lock()
	m.files[name] = local
	m.mu.Unlock()
	return local, nil
}

// remove must be called with the lock held.
func (m *MediaCache) remove(key string) {
	if local, ok := m.files[key]; ok {
		_ = os.Remove(local)
		delete(m.files, key)
	}
}

// cacheFileName derives a stable file name from a remote URL, keeping the
// original extension so players can sniff the type.
func cacheFileName(fileURL string) string {
	sum := sha256.Sum256([]byte(fileURL))
	return hex.EncodeToString(sum[:8]) + path.Ext(fileURL)
}
