package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/api/releases"
)

type cmdPromote struct {
	global *cmdGlobal
}

func (c *cmdPromote) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "promote <path> <version> <channel>"
	cmd.Short = "Move a release to another channel"
	cmd.Long = formatSection("Description",
		`Move a release to another channel

This command is used to promote an existing release (typically from the
"beta" channel) into another channel (typically "stable"). A release
lives in exactly one channel, so promoting it removes it from the
channel it came from.
`)
	cmd.RunE = c.run

	return cmd
}

func (c *cmdPromote) run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 3, 3)
	if exit {
		return err
	}

	if !slices.Contains([]string{"stable", "beta"}, args[2]) {
		return fmt.Errorf("invalid channel %q", args[2])
	}

	// Open the release metadata.
	metaPath := filepath.Join(args[0], args[1], "release.json")

	meta, err := os.OpenFile(metaPath, os.O_RDWR, 0) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no such release %q", args[1])
		}

		return err
	}

	defer func() { _ = meta.Close() }()

	// Parse the current data.
	var release releases.Release

	err = json.NewDecoder(meta).Decode(&release)
	if err != nil {
		return err
	}

	// Update the channel.
	if release.Channel == args[2] {
		return fmt.Errorf("release %q is already in channel %q", args[1], args[2])
	}

	previous := release.Channel
	release.Channel = args[2]

	// Write the updated data.
	_, err = meta.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}

	err = meta.Truncate(0)
	if err != nil {
		return err
	}

	err = json.NewEncoder(meta).Encode(release)
	if err != nil {
		return err
	}

	// Re-generate the index.
	err = generateIndex(ctx, args[0])
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Release promoted", "version", args[1], "from", previous, "to", args[2])

	return nil
}
