// Package main is used for the QuoteDesk release publisher.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type cmdGlobal struct {
	flagHelp    bool
	flagVersion bool
}

func main() {
	// Global flags.
	globalCmd := cmdGlobal{}

	app := &cobra.Command{
		Use:   "quotedesk-publish",
		Short: "QuoteDesk release publisher",
		Long: formatSection("Description",
			`QuoteDesk release publisher

This tool maintains a QuoteDesk release server tree. It packages
application builds, writes the per-release metadata and keeps the
server index up to date.`),
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	app.PersistentFlags().BoolVarP(&globalCmd.flagHelp, "help", "h", false, "Print help command")
	app.PersistentFlags().BoolVarP(&globalCmd.flagVersion, "version", "v", false, "Print binary version")

	app.RunE = func(cmd *cobra.Command, _ []string) error {
		if globalCmd.flagVersion {
			_, _ = fmt.Println("quotedesk-publish version " + version) //nolint:forbidigo

			return nil
		}

		return cmd.Help()
	}

	// Sub-commands.
	releaseCmd := cmdRelease{global: &globalCmd}
	app.AddCommand(releaseCmd.command())

	promoteCmd := cmdPromote{global: &globalCmd}
	app.AddCommand(promoteCmd.command())

	pruneCmd := cmdPrune{global: &globalCmd}
	app.AddCommand(pruneCmd.command())

	verifyCmd := cmdVerify{global: &globalCmd}
	app.AddCommand(verifyCmd.command())

	indexCmd := cmdIndex{global: &globalCmd}
	app.AddCommand(indexCmd.command())

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
