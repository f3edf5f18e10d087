// Package config loads and validates the application configuration from
// environment variables and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gamagoat/anki-toggl/internal/timezone"
)

const (
	// DefaultDescription is the Toggl entry description used when none is configured
	DefaultDescription = "Anki Review Session"

	// DefaultBaseURL is the production Toggl Track API endpoint
	DefaultBaseURL = "https://api.track.toggl.com/api/v9"

	minTokenLength       = 10
	maxTokenLength       = 200
	maxDescriptionLength = 100
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	Toggl   TogglConfig
	Anki    AnkiConfig
	Sync    SyncConfig
	Logging LoggingConfig

	configDir string // Internal: Directory where config was loaded from
}

// TogglConfig holds Toggl Track API configuration
type TogglConfig struct {
	APIToken       string        // Personal API token from the Toggl profile page
	WorkspaceID    int64         // Workspace the entry is created in
	ProjectID      int64         // Project the entry is attached to
	Description    string        // Entry description, also part of the dedup key
	BaseURL        string        // API base URL, overridable for tests
	RequestTimeout time.Duration // Overall per-request timeout
	ConnectTimeout time.Duration // TCP connect timeout
}

// AnkiConfig holds Anki collection access configuration
type AnkiConfig struct {
	CollectionPath string        // Path to collection.anki2
	QueryTimeout   time.Duration // Timeout for collection queries
}

// SyncConfig holds sync behaviour configuration
type SyncConfig struct {
	Timezone   string        // Timezone for "today", "local" or an IANA name
	AutoSync   bool          // Whether watch mode is the intended run mode
	Debounce   time.Duration // Quiet period before watch mode re-syncs
	LedgerPath string        // Path to the sync state file
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)

	FileMaxSizeMB  int // Rotate the log file after this many megabytes
	FileMaxBackups int // Rotated files to keep
	FileMaxAgeDays int // Days to keep rotated files
}

// New returns a new empty Config
func New() *Config {
	return &Config{
		Toggl:   TogglConfig{},
		Anki:    AnkiConfig{},
		Sync:    SyncConfig{},
		Logging: LoggingConfig{},
	}
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks if the configuration is well-formed. Presence of the
// Toggl credentials is not enforced here; see ValidateForSync.
func (c *Config) Validate() error {
	if err := c.validateToggl(); err != nil {
		return fmt.Errorf("toggl config: %w", err)
	}

	if err := c.validateAnki(); err != nil {
		return fmt.Errorf("anki config: %w", err)
	}

	if err := c.validateSync(); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ValidateForSync checks the fields a live sync needs on top of Validate
func (c *Config) ValidateForSync() error {
	if c.Toggl.APIToken == "" {
		return fmt.Errorf("toggl config: api_token is required, get one from https://track.toggl.com/profile")
	}

	if c.Toggl.WorkspaceID <= 0 {
		return fmt.Errorf("toggl config: workspace_id is required")
	}

	if c.Toggl.ProjectID <= 0 {
		return fmt.Errorf("toggl config: project_id is required")
	}

	if c.Anki.CollectionPath == "" {
		return fmt.Errorf("anki config: collection path is required")
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateToggl() error {
	if c.Toggl.APIToken != "" {
		if len(c.Toggl.APIToken) < minTokenLength || len(c.Toggl.APIToken) > maxTokenLength {
			return fmt.Errorf("api_token must be between %d and %d characters", minTokenLength, maxTokenLength)
		}
	}

	if c.Toggl.WorkspaceID < 0 {
		return fmt.Errorf("workspace_id cannot be negative")
	}

	if c.Toggl.ProjectID < 0 {
		return fmt.Errorf("project_id cannot be negative")
	}

	if c.Toggl.Description == "" || len(c.Toggl.Description) > maxDescriptionLength {
		return fmt.Errorf("description must be between 1 and %d characters", maxDescriptionLength)
	}

	if c.Toggl.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	if c.Toggl.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	if c.Toggl.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive")
	}

	return nil
}

func (c *Config) validateAnki() error {
	if c.Anki.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}

	return nil
}

func (c *Config) validateSync() error {
	if _, err := timezone.Resolve(c.Sync.Timezone); err != nil {
		return err
	}

	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive")
	}

	if c.Sync.LedgerPath == "" {
		return fmt.Errorf("ledger path cannot be empty")
	}

	// Create the directory if it doesn't exist
	dir := filepath.Dir(c.Sync.LedgerPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for ledger: %w", err)
		}
	}

	if err := checkDirectoryWritable(dir); err != nil {
		return fmt.Errorf("ledger directory: %w", err)
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 from the environment variable
func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// checkDirectoryWritable tests if a directory is writable
func checkDirectoryWritable(dir string) error {
	// Create a temporary file to test write permissions
	testFile := filepath.Join(dir, fmt.Sprintf("test_write_%d", time.Now().UnixNano()))
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}

	// Clean up
	f.Close()
	os.Remove(testFile)

	return nil
}
