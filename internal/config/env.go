package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads .env files from the working directory and from the
// directory holding the configuration file. Variables already present in
// the process environment are never overwritten.
func loadEnvFiles(configDir string) {
	dirs := []string{"."}
	if configDir != "" && configDir != "." {
		dirs = append(dirs, configDir)
	}
	for _, dir := range dirs {
		for _, name := range envFiles {
			path := filepath.Join(dir, name)
			if err := godotenv.Load(path); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					slog.Warn("Failed to load env file", "path", path, "error", err)
				}
				continue
			}
			slog.Debug("Loaded environment file", "path", path)
		}
	}
}
