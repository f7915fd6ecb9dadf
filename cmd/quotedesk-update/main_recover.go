package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lxc/incus/v6/shared/ask"
	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/internal/recovery"
)

type cmdRecover struct {
	global *cmdGlobal

	flagRestore bool
	flagDiscard bool
	flagYes     bool
}

func (c *cmdRecover) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "recover"
	cmd.Short = "Recover from an interrupted update"
	cmd.Long = formatSection("Description",
		`Recover from an interrupted update

This inspects the installation for leftovers of an update that did not
complete. With --restore the newest backup is put back in place of the
current installation; with --discard all leftovers including backups
are deleted. Without either flag, staging directories, scripts and
failure markers are cleaned up while backups are kept.
`)
	cmd.RunE = c.run

	cmd.Flags().BoolVar(&c.flagRestore, "restore", false, "Put the newest backup back in place")
	cmd.Flags().BoolVar(&c.flagDiscard, "discard", false, "Delete all leftovers including backups")
	cmd.Flags().BoolVar(&c.flagYes, "yes", false, "Don't ask for confirmation")

	return cmd
}

func (c *cmdRecover) run(cmd *cobra.Command, args []string) error {
	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	if c.flagRestore && c.flagDiscard {
		return errors.New("--restore and --discard can't be combined")
	}

	config, err := loadConfig(c.global.flagConfig)
	if err != nil {
		return err
	}

	report, err := recovery.Scan(config.InstallRoot)
	if err != nil {
		return err
	}

	if !report.Incomplete() {
		_, _ = fmt.Println("No update leftovers found") //nolint:forbidigo

		return nil
	}

	_, _ = fmt.Println("Previous update did not complete. Found:") //nolint:forbidigo

	for _, backup := range report.Backups {
		_, _ = fmt.Printf("  Backup: %s (%s)\n", backup.Path, backup.CreatedAt.Format(time.RFC1123)) //nolint:forbidigo
	}

	for _, dir := range report.StagingDirs {
		_, _ = fmt.Printf("  Staging: %s\n", dir) //nolint:forbidigo
	}

	for _, script := range report.Scripts {
		_, _ = fmt.Printf("  Script: %s\n", script) //nolint:forbidigo
	}

	if report.Failure != nil {
		_, _ = fmt.Printf("  Failure: step %q (%s)\n", report.Failure.Step, report.Failure.Detail) //nolint:forbidigo
	}

	switch {
	case c.flagRestore:
		if !c.flagYes {
			asker := ask.NewAsker(bufio.NewReader(os.Stdin))

			ok, err := asker.AskBool("Replace the current installation with the newest backup? (yes/no) [default=no]: ", "no")
			if err != nil {
				return err
			}

			if !ok {
				return nil
			}
		}

		err = recovery.Restore(config.InstallRoot, report)
		if err != nil {
			return err
		}

		// The backup is live again; only transient leftovers remain.
		err = recovery.CleanupTransient(report)
		if err != nil {
			return err
		}

		_, _ = fmt.Println("Backup restored") //nolint:forbidigo

	case c.flagDiscard:
		if !c.flagYes {
			asker := ask.NewAsker(bufio.NewReader(os.Stdin))

			ok, err := asker.AskBool("Delete all leftovers including backups? (yes/no) [default=no]: ", "no")
			if err != nil {
				return err
			}

			if !ok {
				return nil
			}
		}

		err = recovery.Discard(report)
		if err != nil {
			return err
		}

		_, _ = fmt.Println("Leftovers deleted") //nolint:forbidigo

	default:
		err = recovery.CleanupTransient(report)
		if err != nil {
			return err
		}

		_, _ = fmt.Println("Transient leftovers cleaned up, backups kept") //nolint:forbidigo

		if len(report.Backups) > 0 {
			_, _ = fmt.Println("Re-run with --restore to roll back or --discard to delete the backups") //nolint:forbidigo
		}
	}

	return nil
}
