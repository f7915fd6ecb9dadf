package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/internal/recovery"
	"github.com/quotedesk/selfupdate/internal/state"
)

type cmdStatus struct {
	global *cmdGlobal
}

func (c *cmdStatus) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "status"
	cmd.Short = "Show the updater status"
	cmd.Long = formatSection("Description",
		`Show the updater status

This prints the installed version, the configured channel and check
policy, the state of the last update attempt and any leftovers from an
update that did not complete.
`)
	cmd.RunE = c.run

	return cmd
}

func (c *cmdStatus) run(cmd *cobra.Command, args []string) error {
	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	config, err := loadConfig(c.global.flagConfig)
	if err != nil {
		return err
	}

	st, err := state.LoadOrCreate(config.StatePath)
	if err != nil {
		// A fresh installation has no state directory yet.
		st = nil
	}

	report, err := recovery.Scan(config.InstallRoot)
	if err != nil {
		return err
	}

	installed := config.CurrentVersion
	if installed == "" && report.Applied != nil {
		installed = report.Applied.Version
	}

	if installed == "" {
		installed = "unknown"
	}

	var out strings.Builder

	out.WriteString("Installation:\n")
	out.WriteString("  Root: " + config.InstallRoot + "\n")
	out.WriteString("  Version: " + installed + "\n")

	if report.Applied != nil {
		out.WriteString("  Last update applied: " + report.Applied.When.Format(time.RFC1123) + "\n")
	}

	out.WriteString("\nPolicy:\n")
	out.WriteString("  Provider: " + config.Provider + "\n")
	out.WriteString("  Channel: " + config.Update.Channel + "\n")
	out.WriteString("  Check frequency: " + config.Update.CheckFrequency + "\n")
	out.WriteString(fmt.Sprintf("  Auto apply: %v\n", config.Update.AutoApply))

	if st != nil {
		out.WriteString("\nLast attempt:\n")
		out.WriteString("  Status: " + string(st.Update.State.Status) + "\n")

		if !st.Update.State.LastCheck.IsZero() {
			out.WriteString("  Last check: " + st.Update.State.LastCheck.Local().Format(time.RFC1123) + "\n")
		}

		if st.Update.State.PendingVersion != "" {
			out.WriteString("  Pending version: " + st.Update.State.PendingVersion + "\n")
		}

		if st.Update.State.LastFailure != "" {
			out.WriteString("  Last failure: " + st.Update.State.LastFailure + "\n")
		}
	}

	if report.Incomplete() {
		out.WriteString("\nLeftovers (run \"quotedesk-update recover\"):\n")

		for _, backup := range report.Backups {
			out.WriteString("  Backup: " + backup.Path + " (" + backup.CreatedAt.Format(time.RFC1123) + ")\n")
		}

		for _, dir := range report.StagingDirs {
			out.WriteString("  Staging: " + dir + "\n")
		}

		for _, script := range report.Scripts {
			out.WriteString("  Script: " + script + "\n")
		}

		if report.Failure != nil {
			out.WriteString(fmt.Sprintf("  Failure: step %q (%s)\n", report.Failure.Step, report.Failure.Detail))
		}
	}

	_, _ = fmt.Print(out.String()) //nolint:forbidigo

	return nil
}
