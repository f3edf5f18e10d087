package commands

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gamagoat/anki-toggl/internal/app"
	"github.com/gamagoat/anki-toggl/internal/utils"
)

// StatusCommand returns the CLI command for showing today's sync state
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:        "status",
		Usage:       "Show today's review time and sync state",
		Description: "Displays what the Anki collection reports for today and what the sync ledger remembers about it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "timezone",
				Usage: "IANA timezone for the day boundary (defaults to the configured one)",
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	session, record, err := application.Sync.Today(c.Context, c.String("timezone"))
	if err != nil {
		return err
	}

	utils.PrintHeading("Today in Anki")
	switch {
	case !application.Tracker.Available():
		utils.PrintWarning("Anki collection is not available.")
		utils.PrintKeyValue("Collection", application.Tracker.CollectionPath())
	case session.Empty():
		utils.PrintInfo("No review time logged for today in Anki.")
	default:
		utils.PrintKeyValue("Review time", utils.FormatDuration(session.DurationSeconds))
		utils.PrintKeyValue("Reviews", fmt.Sprintf("%d", session.SessionCount))
		utils.PrintKeyValue("First review", utils.FormatClock(session.StartTime))
		if session.EndTime != nil {
			utils.PrintKeyValue("Last review", utils.FormatClock(*session.EndTime))
		}
	}

	utils.PrintDivider()
	utils.PrintHeading("Toggl sync")
	if !record.Exists {
		utils.PrintInfo("Not synced yet today")
	} else {
		entryID := "-"
		if record.TogglID != nil {
			entryID = fmt.Sprintf("%d", *record.TogglID)
		}
		utils.PrintTable(
			[]string{"Action", "Entry ID", "Duration", "Start", "Synced At"},
			[][]string{{
				record.Action,
				entryID,
				utils.FormatDuration(record.DurationSeconds),
				formatStoredTime(record.StartTime),
				formatStoredTime(record.SyncedAt),
			}},
		)
	}
	utils.PrintKeyValue("Tracked days", fmt.Sprintf("%d", application.Ledger.Count()))

	return nil
}

// formatStoredTime reformats a ledger timestamp for display. Values that do
// not parse are shown as stored.
func formatStoredTime(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return utils.FormatTimestamp(parsed)
}
