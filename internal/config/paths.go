package config

import (
	"os"
	"path/filepath"
)

// BonsaiPath returns the root directory for Bonsai data.
// It uses $BONSAI_PATH if set, otherwise defaults to ~/.bonsai.
func BonsaiPath() string {
	if v := os.Getenv("BONSAI_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".bonsai")
	}
	return filepath.Join(home, ".bonsai")
}

// ConfigPath returns the path to the Bonsai config file.
func ConfigPath() string {
	return filepath.Join(BonsaiPath(), "config.jsonc")
}

// DotenvPath returns the path to the Bonsai .env file.
func DotenvPath() string {
	return filepath.Join(BonsaiPath(), ".env")
}

// DatabasePath returns the default SQLite database file path.
func DatabasePath() string {
	return filepath.Join(BonsaiPath(), "bonsai.db")
}
