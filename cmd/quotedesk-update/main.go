// Package main is used for the QuoteDesk update tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/internal/providers"
	"github.com/quotedesk/selfupdate/internal/state"
	"github.com/quotedesk/selfupdate/internal/update"
)

var version = "dev"

type cmdGlobal struct {
	flagHelp    bool
	flagVersion bool
	flagDebug   bool
	flagConfig  string
	flagQuiet   bool
}

func main() {
	// Global flags.
	globalCmd := cmdGlobal{}

	app := &cobra.Command{
		Use:   "quotedesk-update",
		Short: "QuoteDesk update tool",
		Long: formatSection("Description",
			`QuoteDesk update tool

This tool checks for, downloads and installs QuoteDesk releases. A new
release is staged next to the installation and swapped in by a small
install script once the application has exited.`),
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	app.PersistentFlags().BoolVarP(&globalCmd.flagHelp, "help", "h", false, "Print help command")
	app.PersistentFlags().BoolVarP(&globalCmd.flagVersion, "version", "v", false, "Print binary version")
	app.PersistentFlags().BoolVarP(&globalCmd.flagDebug, "debug", "d", false, "Enable debug logging")
	app.PersistentFlags().BoolVarP(&globalCmd.flagQuiet, "quiet", "q", false, "Don't print progress output")
	app.PersistentFlags().StringVarP(&globalCmd.flagConfig, "config", "c", defaultConfigPath(), "Path to the updater configuration file")

	app.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if globalCmd.flagDebug {
			level = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	}

	app.RunE = func(cmd *cobra.Command, _ []string) error {
		if globalCmd.flagVersion {
			_, _ = fmt.Println("quotedesk-update version " + version) //nolint:forbidigo

			return nil
		}

		return cmd.Help()
	}

	// Sub-commands.
	checkCmd := cmdCheck{global: &globalCmd}
	app.AddCommand(checkCmd.command())

	applyCmd := cmdApply{global: &globalCmd}
	app.AddCommand(applyCmd.command())

	watchCmd := cmdWatch{global: &globalCmd}
	app.AddCommand(watchCmd.command())

	statusCmd := cmdStatus{global: &globalCmd}
	app.AddCommand(statusCmd.command())

	recoverCmd := cmdRecover{global: &globalCmd}
	app.AddCommand(recoverCmd.command())

	// Help handling.
	app.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	// Run the main command and handle errors.
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// CheckArgs validates the positional argument count for a sub-command.
func (c *cmdGlobal) CheckArgs(cmd *cobra.Command, args []string, minArgs int, maxArgs int) (bool, error) {
	if len(args) < minArgs || (maxArgs != -1 && len(args) > maxArgs) {
		_ = cmd.Help()

		return true, errors.New("invalid number of arguments")
	}

	return false, nil
}

// tool bundles everything the sub-commands need to drive an update.
type tool struct {
	config *Config
	state  *state.State
	host   *cliHost
	ctrl   *update.Controller
}

// setup loads the configuration and assembles the update controller on top
// of the configured release provider.
func (c *cmdGlobal) setup(ctx context.Context) (*tool, error) {
	config, err := loadConfig(c.flagConfig)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(filepath.Dir(config.StatePath), 0o755)
	if err != nil {
		return nil, errors.New("unable to create state directory: " + err.Error())
	}

	st, err := state.LoadOrCreate(config.StatePath)
	if err != nil {
		return nil, err
	}

	// The configuration file is authoritative for the update settings.
	st.Update.Config = config.Update

	err = st.Save()
	if err != nil {
		return nil, err
	}

	locator, err := providers.Load(ctx, config.Provider, config.ProviderConfig)
	if err != nil {
		return nil, err
	}

	host := newCLIHost(config)

	events := renderEvent
	if c.flagQuiet {
		events = nil
	}

	return &tool{
		config: config,
		state:  st,
		host:   host,
		ctrl:   update.New(host, locator, st, events),
	}, nil
}
