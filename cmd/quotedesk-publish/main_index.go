package main

import (
	"context"

	"github.com/spf13/cobra"
)

type cmdIndex struct {
	global *cmdGlobal
}

func (c *cmdIndex) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "index <path>"
	cmd.Short = "Regenerate the server index"
	cmd.Long = formatSection("Description",
		`Regenerate the server index

This rebuilds index.json from the release.json files found in the
server tree. Useful after deleting a release by hand.
`)
	cmd.RunE = c.run

	return cmd
}

func (c *cmdIndex) run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	return generateIndex(ctx, args[0])
}
