package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/gamagoat/anki-toggl/internal/app"
	"github.com/gamagoat/anki-toggl/internal/loggy"
	"github.com/gamagoat/anki-toggl/internal/utils"
	"github.com/gamagoat/anki-toggl/internal/watcher"
)

// WatchCommand returns the CLI command for continuous syncing
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:        "watch",
		Usage:       "Watch the Anki collection and sync after every change",
		Description: "Runs until interrupted, syncing whenever Anki writes the collection. Rapid writes are debounced into a single sync.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "timezone",
				Usage: "IANA timezone for the day boundary (defaults to the configured one)",
			},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Config.ValidateForSync(); err != nil {
		return fmt.Errorf("sync is not configured: %w (run 'ankitoggl config init' to create a config file)", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(
		application.Config.Anki.CollectionPath,
		application.Config.Sync.Debounce,
		loggy.GetGlobalLogger(),
	)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	utils.PrintInfo("Watching " + application.Config.Anki.CollectionPath)
	utils.PrintInfo(fmt.Sprintf("Syncing at most once per %s, press Ctrl+C to stop", application.Config.Sync.Debounce))

	tz := c.String("timezone")

	// Catch up before the first change arrives
	syncOnce(ctx, application, tz)

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			utils.PrintInfo("Stopping watcher")
			return nil
		case <-w.Events():
			syncOnce(ctx, application, tz)
		}
	}
}

// syncOnce runs a single sync pass. Failures are reported but do not stop
// the watch loop; the next collection change retries naturally.
func syncOnce(ctx context.Context, application *app.App, tz string) {
	if ctx.Err() != nil {
		return
	}

	outcome, err := application.Sync.SyncReviewTime(ctx, tz)
	if err != nil {
		loggy.Warn("Watch sync failed", "error", err)
		utils.PrintWarning("Sync failed: " + err.Error())
		return
	}

	printOutcome(outcome, false)
}
