// Package app provides the application initialization and lifecycle management
package app

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/gamagoat/anki-toggl/internal/anki"
	"github.com/gamagoat/anki-toggl/internal/config"
	"github.com/gamagoat/anki-toggl/internal/ledger"
	"github.com/gamagoat/anki-toggl/internal/loggy"
	"github.com/gamagoat/anki-toggl/internal/sync"
	"github.com/gamagoat/anki-toggl/internal/toggl"
)

// App represents the application instance with its dependencies
type App struct {
	Config  *config.Config
	Ledger  *ledger.Ledger
	Toggl   *toggl.Client
	Tracker *anki.Tracker
	Sync    *sync.Service
	Version string
}

// New initializes a new application instance with all its dependencies
func New(version string) (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", version,
		"log_level", cfg.Logging.Level,
	)

	logger := loggy.GetGlobalLogger()

	ldg := ledger.New(cfg.Sync.LedgerPath, logger)
	togglClient := toggl.NewClient(cfg.Toggl, version, logger)
	tracker := anki.NewTracker(cfg.Anki, logger)
	syncService := sync.NewService(cfg, togglClient, tracker, ldg, logger)

	loggy.Info("Application initialized successfully",
		"collection", tracker.CollectionPath(),
		"ledger", ldg.Path(),
	)

	return &App{
		Config:  cfg,
		Ledger:  ldg,
		Toggl:   togglClient,
		Tracker: tracker,
		Sync:    syncService,
		Version: version,
	}, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set the global configuration
	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:          config.ParseLogLevel(cfg.Logging.Level),
		Format:         cfg.Logging.Format,
		Output:         cfg.Logging.Output,
		AddSource:      cfg.Logging.AddSource,
		TimeFormat:     cfg.Logging.TimeFormat,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxBackups: cfg.Logging.FileMaxBackups,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")
	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
