package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/wisdar",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Server: ServerConfig{
			URL: "http://localhost:5000",
		},
		RememberMe:  false,
		Credentials: "encrypted",
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Wisdar System Configuration
# Location: ~/.config/wisdar/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the local cache and user config are stored
data_directory = "~/.local/share/wisdar"
`
}

func GenerateUserConfigTemplate() string {
	return `# Wisdar User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[server]
# Wisdar backend URL
url = "http://localhost:5000"

# Account email pre-filled on the login view (optional)
email = ""

# Keep the session password on disk so login is automatic
remember_me = false

# How stored credentials are protected: "encrypted" (AES-GCM with a
# passphrase-derived key) or "plaintext"
credentials = "encrypted"
`
}
