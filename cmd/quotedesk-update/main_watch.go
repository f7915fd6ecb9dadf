package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/internal/providers"
	"github.com/quotedesk/selfupdate/internal/scheduling"
	"github.com/quotedesk/selfupdate/internal/update"
)

type cmdWatch struct {
	global *cmdGlobal

	flagPID int
}

func (c *cmdWatch) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "watch"
	cmd.Short = "Periodically check for new releases"
	cmd.Long = formatSection("Description",
		`Periodically check for new releases

This keeps running and checks for new QuoteDesk releases at the
configured frequency. With auto_apply enabled in the configuration,
new releases are downloaded and installed as they appear; the tool
then exits to let the install script swap the installation.
`)
	cmd.RunE = c.run

	cmd.Flags().IntVar(&c.flagPID, "pid", 0, "Process id of a running QuoteDesk instance to wait for")

	return cmd
}

func (c *cmdWatch) run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	tool, err := c.global.setup(ctx)
	if err != nil {
		return err
	}

	if tool.config.Update.CheckFrequency == "never" {
		return errors.New("periodic checks are disabled (check_frequency is \"never\")")
	}

	frequency, err := time.ParseDuration(tool.config.Update.CheckFrequency)
	if err != nil {
		return err
	}

	if c.flagPID > 0 {
		tool.host.waitPID = c.flagPID
	}

	scheduler, err := scheduling.NewScheduler()
	if err != nil {
		return err
	}

	defer func() { _ = scheduler.Shutdown() }()

	err = scheduler.RegisterJob("update_check", frequency, func(jobCtx context.Context) error {
		return c.checkOnce(jobCtx, tool)
	})
	if err != nil {
		return err
	}

	scheduler.Start()

	slog.InfoContext(ctx, "Watching for QuoteDesk updates", "frequency", frequency.String(), "auto_apply", tool.config.Update.AutoApply)

	// Run a first check right away rather than waiting a full interval.
	err = c.checkOnce(ctx, tool)
	if err != nil {
		slog.ErrorContext(ctx, "Update check failed", "err", err)
	}

	select {
	case <-ctx.Done():
		slog.Info("Exiting on signal")

	case <-tool.host.ShutdownRequested():
		// An update was handed off; the install script is waiting for
		// this process to exit.
		slog.Info("Exiting for the install script to take over")
	}

	return nil
}

// checkOnce performs a single scheduled pass, either a plain check or a full
// update attempt depending on the auto_apply setting.
func (c *cmdWatch) checkOnce(ctx context.Context, tool *tool) error {
	if tool.config.Update.AutoApply {
		err := tool.ctrl.Run(ctx)
		if err != nil && !errors.Is(err, providers.ErrNoUpdateAvailable) && !errors.Is(err, update.ErrUpdateInProgress) {
			return err
		}

		return nil
	}

	release, err := tool.ctrl.Check(ctx)
	if err != nil {
		if errors.Is(err, providers.ErrNoUpdateAvailable) || errors.Is(err, update.ErrUpdateInProgress) {
			return nil
		}

		return err
	}

	slog.InfoContext(ctx, "Update available", "version", release.DisplayVersion)

	return nil
}
