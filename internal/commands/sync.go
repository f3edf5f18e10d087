package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gamagoat/anki-toggl/internal/app"
	"github.com/gamagoat/anki-toggl/internal/loggy"
	"github.com/gamagoat/anki-toggl/internal/sync"
	"github.com/gamagoat/anki-toggl/internal/utils"
)

// SyncCommand returns the CLI command for syncing review time to Toggl
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:        "sync",
		Usage:       "Sync today's Anki review time to Toggl",
		Description: "Reads today's review time from the Anki collection and creates or updates the matching Toggl time entry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "timezone",
				Usage: "IANA timezone for the day boundary (defaults to the configured one)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be synced without sending anything to Toggl",
				Value: false,
			},
		},
		Action: syncAction,
	}
}

// syncAction is the main action for the sync command
func syncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	isDryRun := c.Bool("dry-run")

	// Check if sync is configured. A dry run never talks to Toggl, so it
	// works without credentials.
	if !isDryRun {
		if err := application.Config.ValidateForSync(); err != nil {
			return fmt.Errorf("sync is not configured: %w (run 'ankitoggl config init' to create a config file)", err)
		}
	}

	loggy.Info("Starting manual sync", "dry_run", isDryRun)

	if isDryRun {
		utils.PrintInfo("Dry run, nothing will be sent to Toggl")
		outcome, err := application.Sync.Preview(c.Context, c.String("timezone"))
		if err != nil {
			return err
		}
		printOutcome(outcome, true)
		return nil
	}

	outcome, err := application.Sync.SyncReviewTime(c.Context, c.String("timezone"))
	if err != nil {
		return err
	}

	printOutcome(outcome, false)
	return nil
}

// printOutcome renders a sync outcome for the terminal
func printOutcome(outcome *sync.Outcome, dryRun bool) {
	if outcome.Skipped {
		utils.PrintWarning(outcome.SkipReason)
		return
	}

	verb := "Created"
	if outcome.Action == sync.ActionUpdate {
		verb = "Updated"
	}
	if dryRun {
		verb = "Would create"
		if outcome.Action == sync.ActionUpdate {
			verb = "Would update"
		}
	}

	utils.PrintSuccess(fmt.Sprintf("%s Toggl entry for %s", verb, color.CyanString(outcome.TargetDate)))
	utils.PrintKeyValue("Review time", utils.FormatDuration(outcome.Session.DurationSeconds))
	utils.PrintKeyValue("Reviews", fmt.Sprintf("%d", outcome.Session.SessionCount))
	utils.PrintKeyValue("First review", utils.FormatClock(outcome.Session.StartTime))
	if outcome.TogglID != nil {
		utils.PrintKeyValueWithColor("Entry ID", fmt.Sprintf("%d", *outcome.TogglID), utils.Theme.Info)
	}
}
