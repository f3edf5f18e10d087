package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gamagoat/anki-toggl/internal/loggy"
)

//go:embed env.sample
var configFS embed.FS

// SetupConfigDirectory creates the config directory and writes the
// commented .env sample into it. An existing .env is left alone unless
// backupExisting is set, in which case it is copied to a dated .bak and
// then replaced.
func SetupConfigDirectory(configDir string, backupExisting bool) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	envPath := filepath.Join(configDir, ".env")

	if _, err := os.Stat(envPath); err == nil {
		if !backupExisting {
			return nil
		}
		if err := backupFile(envPath); err != nil {
			return err
		}
	}

	sample, err := configFS.ReadFile("env.sample")
	if err != nil {
		return fmt.Errorf("failed to read embedded sample: %w", err)
	}

	if err := os.WriteFile(envPath, sample, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", envPath, err)
	}

	loggy.Info("Wrote default configuration file", "path", envPath)
	return nil
}

// backupFile copies path to a sibling name stamped with today's date
func backupFile(path string) error {
	backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("2006-01-02"))

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s for backup: %w", path, err)
	}

	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write backup %s: %w", backupPath, err)
	}

	loggy.Info("Backed up existing configuration file", "original", path, "backup", backupPath)
	return nil
}
