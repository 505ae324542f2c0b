package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WISDAR_SERVER_URL", "https://chat.example.com")
	t.Setenv("WISDAR_EMAIL", "ops@example.com")
	t.Setenv("WISDAR_DATA_DIR", "/srv/wisdar")

	cfg := &Config{
		DataDirectory: "~/.local/share/wisdar",
		ServerURL:     "http://localhost:5000",
	}
	cfg.applyEnvOverrides()

	assert.Equal(t, "https://chat.example.com", cfg.ServerURL)
	assert.Equal(t, "ops@example.com", cfg.Email)
	assert.Equal(t, "/srv/wisdar", cfg.DataDirectory)
}

func TestCheckDebug(t *testing.T) {
	t.Setenv("WISDAR_DEBUG", "1")
	assert.True(t, CheckDebug())

	t.Setenv("WISDAR_DEBUG", "false")
	assert.False(t, CheckDebug())
}

func TestKeybindingDefaultsAndOverrides(t *testing.T) {
	kb := DefaultKeybindings()
	assert.Equal(t, "alt+n", kb.GetActionKey("new_conversation"))
	assert.Equal(t, "alt+J", kb.GetActionKey("half_page_down"))
	assert.Equal(t, "j", kb.GetActionKey("sidebar_down"))
	assert.Empty(t, kb.GetActionKey("no_such_action"))

	kb.Actions = map[string]string{"quit": "ctrl+shift+q"}
	assert.Equal(t, "ctrl+shift+q", kb.GetActionKey("quit"))
	assert.Equal(t, "Ctrl+Shift+Q", kb.DisplayActionKey("quit"))
}

func TestKeybindingValidate(t *testing.T) {
	kb := DefaultKeybindings()
	ok, warning := kb.Validate()
	assert.True(t, ok)
	assert.Empty(t, warning)

	kb.Modifiers.Primary = "shift"
	ok, _ = kb.Validate()
	assert.False(t, ok)
}
