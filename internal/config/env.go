package config

import (
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; values never override the process environment.
var envFiles = []string{".neon.env", ".env"}

// loadEnvFile overlays KEY=VALUE files found next to the configuration so
// secrets (FTP passwords, git tokens) can be referenced as ${VAR} in ~/.neonrc.
func loadEnvFile(dir string) {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err == nil {
			slog.Debug("Loaded environment overlay", slog.String("path", path))
			return
		}
	}
}
