package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gamagoat/anki-toggl/internal/app"
	"github.com/gamagoat/anki-toggl/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
	Author     = "unknown"
	Email      = "unknown"
)

var (
	// The root flags mirror the sync command so the default action accepts them
	globalFlags = []cli.Flag{
		&cli.StringFlag{
			Name:  "timezone",
			Usage: "IANA timezone for the day boundary (defaults to the configured one)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Show what would be synced without sending anything to Toggl",
			Value: false,
		},
	}
)

func main() {
	cliApp := &cli.App{
		Name:  "ankitoggl",
		Usage: "Sync Anki review time to Toggl Track",
		Description: "AnkiToggl reads today's review time from your Anki collection and logs\n" +
			"it as a Toggl Track time entry, keeping one entry per day up to date.\n\n" +
			"When run without subcommands, AnkiToggl performs a single sync, or\n" +
			"watches the collection when auto-sync is enabled.",
		Version: Version,
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Authors: []*cli.Author{
			{
				Name:  Author,
				Email: Email,
			},
		},
		Flags: globalFlags,
		Before: func(c *cli.Context) error {
			// Initialize the application
			application, err := app.New(Version)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			// Store the app instance in the context for later use
			c.App.Metadata = map[string]interface{}{
				"app": application,
			}

			return nil
		},
		After: func(c *cli.Context) error {
			// Gracefully shutdown the application
			if app, ok := c.App.Metadata["app"].(*app.App); ok {
				return app.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.SyncCommand(),
			commands.StatusCommand(),
			commands.WatchCommand(),
			commands.VerifyCommand(),
			commands.ConfigCommand(),
		},
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			// Default action: watch when auto-sync is configured, otherwise
			// run a single sync pass
			if application.Config.Sync.AutoSync && !c.Bool("dry-run") {
				return commands.WatchCommand().Action(c)
			}
			return commands.SyncCommand().Action(c)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
