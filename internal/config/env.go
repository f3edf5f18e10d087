package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"github.com/gamagoat/anki-toggl/internal/timezone"
)

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	// Load empty configuration
	cfg := New()

	// If configDir is empty, use the default
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".ankitoggl")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg.configDir = configDir

	// Default ledger and log paths live in the config directory
	defaultLedgerPath := filepath.Join(configDir, "sync_state.json")
	defaultLogPath := filepath.Join(configDir, "ankitoggl.log")

	// Use provided config file path or default
	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// Check if ANKITOGGL_ENV_FILE is set to load from a custom .env file
	envFilePath := getEnvString("ANKITOGGL_ENV_FILE", "")
	if envFilePath != "" {
		// User specified a custom env file path
		err := godotenv.Load(envFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		// Try to load from config directory first
		err := godotenv.Load(configFilePath)
		if err != nil {
			// Then try current directory as fallback
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	// Toggl Configuration
	cfg.Toggl = TogglConfig{
		APIToken:       getEnvString("ANKITOGGL_TOGGL_API_TOKEN", ""),
		WorkspaceID:    getEnvInt64("ANKITOGGL_TOGGL_WORKSPACE_ID", 0),
		ProjectID:      getEnvInt64("ANKITOGGL_TOGGL_PROJECT_ID", 0),
		Description:    getEnvString("ANKITOGGL_TOGGL_DESCRIPTION", DefaultDescription),
		BaseURL:        getEnvString("ANKITOGGL_TOGGL_BASE_URL", DefaultBaseURL),
		RequestTimeout: getEnvDuration("ANKITOGGL_TOGGL_REQUEST_TIMEOUT", 30*time.Second),
		ConnectTimeout: getEnvDuration("ANKITOGGL_TOGGL_CONNECT_TIMEOUT", 5*time.Second),
	}

	// Anki Configuration
	cfg.Anki = AnkiConfig{
		CollectionPath: getEnvString("ANKITOGGL_ANKI_COLLECTION", defaultCollectionPath()),
		QueryTimeout:   getEnvDuration("ANKITOGGL_ANKI_QUERY_TIMEOUT", 10*time.Second),
	}

	// Sync Configuration
	cfg.Sync = SyncConfig{
		Timezone:   getEnvString("ANKITOGGL_TIMEZONE", timezone.Default),
		AutoSync:   getEnvBool("ANKITOGGL_AUTO_SYNC", false),
		Debounce:   getEnvDuration("ANKITOGGL_SYNC_DEBOUNCE", 30*time.Second),
		LedgerPath: getEnvString("ANKITOGGL_LEDGER_PATH", defaultLedgerPath),
	}

	// Logging Configuration
	cfg.Logging = LoggingConfig{
		Level:      getEnvString("ANKITOGGL_LOG_LEVEL", "info"),
		Format:     getEnvString("ANKITOGGL_LOG_FORMAT", "text"),
		Output:     getEnvString("ANKITOGGL_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("ANKITOGGL_LOG_ADD_SOURCE", true),
		TimeFormat: getEnvString("ANKITOGGL_LOG_TIME_FORMAT", time.RFC3339),

		FileMaxSizeMB:  getEnvInt("ANKITOGGL_LOG_FILE_MAX_SIZE_MB", 10),
		FileMaxBackups: getEnvInt("ANKITOGGL_LOG_FILE_MAX_BACKUPS", 3),
		FileMaxAgeDays: getEnvInt("ANKITOGGL_LOG_FILE_MAX_AGE_DAYS", 30),
	}

	// Validate the configuration
	return cfg, cfg.Validate()
}

// defaultCollectionPath probes the standard Anki data directories for a
// collection file. An empty result is not an error; the sync will skip
// until a collection is configured or appears.
func defaultCollectionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	var bases []string
	switch runtime.GOOS {
	case "darwin":
		bases = append(bases, filepath.Join(home, "Library", "Application Support", "Anki2"))
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			bases = append(bases, filepath.Join(appData, "Anki2"))
		}
	default:
		bases = append(bases, filepath.Join(home, ".local", "share", "Anki2"))
	}

	for _, base := range bases {
		matches, err := filepath.Glob(filepath.Join(base, "*", "collection.anki2"))
		if err != nil || len(matches) == 0 {
			continue
		}
		// Profiles sort alphabetically, so "User 1" wins over later profiles
		sort.Strings(matches)
		return matches[0]
	}

	return ""
}
