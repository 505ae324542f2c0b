package config

import (
	"os"

	"github.com/pkg/errors"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type ServerConfig struct {
	URL string `toml:"url"`
}

type UserConfig struct {
	Server      ServerConfig `toml:"server"`
	Email       string       `toml:"email,omitempty"`
	RememberMe  bool         `toml:"remember_me"`
	Credentials string       `toml:"credentials,omitempty"` // "plaintext" or "encrypted"
}

// Config is the merged runtime configuration.
type Config struct {
	DataDirectory     string
	ServerURL         string
	Email             string
	RememberMe        bool
	CredentialsMethod string
	Keybindings       *KeyBindingsConfig
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("WISDAR_SERVER_URL"); url != "" {
		c.ServerURL = url
	}
	if email := os.Getenv("WISDAR_EMAIL"); email != "" {
		c.Email = email
	}
	if dataDir := os.Getenv("WISDAR_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("WISDAR_DEBUG")
	return debug == "true" || debug == "1"
}

// Load reads settings.toml and the per-data-dir config.toml, creating
// defaults on first run, then applies WISDAR_* environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory:     "~/.local/share/wisdar",
		ServerURL:         "http://localhost:5000",
		CredentialsMethod: "encrypted",
	}

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, errors.Wrap(err, "loading system config")
	}
	if systemCfg.DataDirectory != "" {
		cfg.DataDirectory = systemCfg.DataDirectory
	}

	dataDir := cfg.DataDir()
	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading user config")
	}
	if userCfg.Server.URL != "" {
		cfg.ServerURL = userCfg.Server.URL
	}
	cfg.Email = userCfg.Email
	cfg.RememberMe = userCfg.RememberMe
	if userCfg.Credentials != "" {
		cfg.CredentialsMethod = userCfg.Credentials
	}

	cfg.applyEnvOverrides()

	dataDir = cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, errors.Wrap(err, "setting data directory permissions")
	}

	keybindings, err := LoadKeybindings(dataDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading keybindings")
	}
	cfg.Keybindings = keybindings

	return cfg, nil
}
