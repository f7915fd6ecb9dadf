package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lxc/incus/v6/shared/ask"
	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/internal/providers"
	"github.com/quotedesk/selfupdate/internal/recovery"
)

type cmdApply struct {
	global *cmdGlobal

	flagYes bool
	flagPID int
}

func (c *cmdApply) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "apply"
	cmd.Short = "Download and install the newest release"
	cmd.Long = formatSection("Description",
		`Download and install the newest release

This downloads the newest QuoteDesk release, verifies it and hands off
to a small install script which swaps the installation and relaunches
the application. The tool exits as soon as the hand-off succeeds.

When QuoteDesk itself is running, pass its process id with --pid so the
install script waits for it to exit before touching the installation.
`)
	cmd.RunE = c.run

	cmd.Flags().BoolVar(&c.flagYes, "yes", false, "Install without asking for confirmation")
	cmd.Flags().IntVar(&c.flagPID, "pid", 0, "Process id of a running QuoteDesk instance to wait for")

	return cmd
}

func (c *cmdApply) run(cmd *cobra.Command, args []string) error {
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

	// Refuse to pile a new attempt on top of an unfinished one.
	report, err := recovery.Scan(tool.config.InstallRoot)
	if err == nil && report.Incomplete() {
		return errors.New("previous update did not complete, run \"quotedesk-update recover\" first")
	}

	release, err := tool.ctrl.Check(ctx)
	if err != nil {
		if errors.Is(err, providers.ErrNoUpdateAvailable) {
			_, _ = fmt.Println("QuoteDesk is up to date") //nolint:forbidigo

			return nil
		}

		return err
	}

	if !c.flagYes {
		asker := ask.NewAsker(bufio.NewReader(os.Stdin))

		ok, err := asker.AskBool(fmt.Sprintf("Install QuoteDesk %s? (yes/no) [default=yes]: ", release.DisplayVersion), "yes")
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}
	}

	if c.flagPID > 0 {
		tool.host.waitPID = c.flagPID
	}

	err = tool.ctrl.Run(ctx)
	if err != nil {
		return err
	}

	// The install script now owns the update. It waits for this process
	// (or --pid) to exit before swapping the installation, so return
	// right away.
	return nil
}
