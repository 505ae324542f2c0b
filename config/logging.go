package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// InitLogger opens the file-backed logger in the data directory. The TUI owns
// the terminal, so nothing is ever written to stderr; set WISDAR_DEBUG=1 for
// debug-level output.
func InitLogger(dataDir string) zerolog.Logger {
	level := zerolog.InfoLevel
	if CheckDebug() {
		level = zerolog.DebugLevel
	}

	logPath := filepath.Join(dataDir, "wisdar.log")
	// 0600: request paths and ids may be sensitive
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return zerolog.New(io.Discard)
	}

	return zerolog.New(f).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
