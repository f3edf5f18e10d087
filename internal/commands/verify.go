package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/gamagoat/anki-toggl/internal/app"
	"github.com/gamagoat/anki-toggl/internal/redact"
	"github.com/gamagoat/anki-toggl/internal/utils"
)

// VerifyCommand returns the CLI command for checking the Toggl API token
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:        "verify",
		Usage:       "Verify the configured Toggl API token",
		Description: "Calls the Toggl account endpoint to confirm the token works before a real sync",
		Action:      verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	cfg := application.Config
	if cfg.Toggl.APIToken == "" {
		return fmt.Errorf("toggl api_token is required, set ANKITOGGL_TOGGL_API_TOKEN (found in your Toggl profile at https://track.toggl.com/profile)")
	}

	account, err := application.Toggl.Me(c.Context)
	if err != nil {
		utils.PrintError("Token verification failed")
		return err
	}

	utils.PrintSuccess("Token verified")
	utils.PrintKeyValueWithColor("Account", account.Fullname, utils.Theme.Info)
	utils.PrintKeyValueWithColor("Email", account.Email, utils.Theme.Info)
	utils.PrintKeyValue("Token", redact.Token(cfg.Toggl.APIToken))

	if cfg.Toggl.WorkspaceID > 0 && account.DefaultWorkspaceID > 0 && cfg.Toggl.WorkspaceID != account.DefaultWorkspaceID {
		utils.PrintWarning(fmt.Sprintf(
			"Configured workspace %d differs from the account default %d",
			cfg.Toggl.WorkspaceID, account.DefaultWorkspaceID,
		))
	}

	return nil
}
