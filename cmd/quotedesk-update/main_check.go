package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/internal/providers"
)

type cmdCheck struct {
	global *cmdGlobal
}

func (c *cmdCheck) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "check"
	cmd.Short = "Check for a newer QuoteDesk release"
	cmd.Long = formatSection("Description",
		`Check for a newer QuoteDesk release

This contacts the configured release provider and reports whether a
newer release than the installed one is available. Nothing is
downloaded.
`)
	cmd.RunE = c.run

	return cmd
}

func (c *cmdCheck) run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	tool, err := c.global.setup(ctx)
	if err != nil {
		return err
	}

	release, err := tool.ctrl.Check(ctx)
	if err != nil {
		if errors.Is(err, providers.ErrNoUpdateAvailable) {
			_, _ = fmt.Println("QuoteDesk is up to date") //nolint:forbidigo

			return nil
		}

		return err
	}

	channel := release.Channel
	if channel == "" {
		channel = tool.config.Update.Channel
	}

	_, _ = fmt.Printf("Update available: QuoteDesk %s (%s channel, published %s)\n", release.DisplayVersion, channel, release.PublishedAt.Format(time.DateOnly)) //nolint:forbidigo

	if release.Changelog != "" {
		_, _ = fmt.Print("\n" + formatSection("Changelog", release.Changelog)) //nolint:forbidigo
	}

	return nil
}
