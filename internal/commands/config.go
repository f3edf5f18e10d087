package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gamagoat/anki-toggl/internal/app"
	"github.com/gamagoat/anki-toggl/internal/config"
	"github.com/gamagoat/anki-toggl/internal/redact"
	"github.com/gamagoat/anki-toggl/internal/utils"
)

// ConfigCommand returns the CLI command for inspecting and initializing
// the configuration
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or initialize the configuration",
		Subcommands: []*cli.Command{
			{
				Name:        "show",
				Usage:       "Show the resolved configuration",
				Description: "Displays every setting after environment variables and the config file have been applied. The API token is masked.",
				Action:      configShowAction,
			},
			{
				Name:  "init",
				Usage: "Write a commented .env template to the config directory",
				Description: "Creates the configuration directory with a default .env file. " +
					"An existing .env is only replaced with --force, and is backed up " +
					"with a dated suffix first.",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing .env file (a backup is kept)",
						Value: false,
					},
				},
				Action: configInitAction,
			},
		},
		// Bare "config" behaves like "config show"
		Action: configShowAction,
	}
}

func configShowAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	cfg := application.Config

	token := "(not set)"
	if cfg.Toggl.APIToken != "" {
		token = redact.Token(cfg.Toggl.APIToken)
	}

	utils.PrintTable(
		[]string{"Setting", "Value"},
		[][]string{
			{"Toggl API token", token},
			{"Workspace ID", fmt.Sprintf("%d", cfg.Toggl.WorkspaceID)},
			{"Project ID", fmt.Sprintf("%d", cfg.Toggl.ProjectID)},
			{"Entry description", cfg.Toggl.Description},
			{"Base URL", cfg.Toggl.BaseURL},
			{"Anki collection", cfg.Anki.CollectionPath},
			{"Timezone", cfg.Sync.Timezone},
			{"Auto sync", fmt.Sprintf("%v", cfg.Sync.AutoSync)},
			{"Watch debounce", cfg.Sync.Debounce.String()},
			{"Sync state file", cfg.Sync.LedgerPath},
			{"Log level", cfg.Logging.Level},
			{"Log output", cfg.Logging.Output},
		},
		utils.TableOptions{Title: "AnkiToggl Configuration", Style: utils.DefaultTableOptions().Style},
	)

	if err := cfg.ValidateForSync(); err != nil {
		fmt.Println()
		utils.PrintWarning("Not ready to sync: " + err.Error())
	}

	return nil
}

func configInitAction(c *cli.Context) error {
	utils.PrintHeading("Initializing AnkiToggl")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to get user home directory: %s", err))
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	// Set up config directory (typically ~/.ankitoggl)
	configDir := filepath.Join(homeDir, ".ankitoggl")
	utils.PrintInfo("Configuration directory: " + color.YellowString("%s", configDir))

	configFilePath := filepath.Join(configDir, ".env")
	force := c.Bool("force")

	if _, err := os.Stat(configFilePath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s, use --force to overwrite it", configFilePath)
	}

	// Extract the default environment file; with --force the existing one
	// is backed up first
	utils.PrintInfo("Writing default configuration file")
	if err := config.SetupConfigDirectory(configDir, force); err != nil {
		utils.PrintError(fmt.Sprintf("Failed to set up configuration files: %s", err))
		return fmt.Errorf("failed to set up configuration files: %w", err)
	}

	// Load configuration now that the directory is populated
	cfg, err := config.LoadFromEnv(configDir, configFilePath)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to load configuration: %s", err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	utils.PrintSuccess("AnkiToggl initialized successfully!")

	utils.PrintInfo("Configuration file: " + color.YellowString("%s", configFilePath))
	utils.PrintInfo("Anki collection: " + color.YellowString("%s", cfg.Anki.CollectionPath))
	utils.PrintInfo("Sync state location: " + color.YellowString("%s", cfg.Sync.LedgerPath))
	utils.PrintInfo("Log file location: " + color.YellowString("%s", cfg.Logging.Output))
	fmt.Println("")
	utils.PrintInfo("Add your Toggl credentials to the configuration file, then run " +
		color.CyanString("ankitoggl verify") + " to check them.")

	return nil
}
