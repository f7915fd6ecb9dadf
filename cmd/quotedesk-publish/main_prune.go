package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/api/releases"
)

type cmdPrune struct {
	global *cmdGlobal
}

func (c *cmdPrune) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "prune <path> <count>"
	cmd.Short = "Prune the release server"
	cmd.Long = formatSection("Description",
		`Prunes the release server

This removes old releases, keeping the newest <count> releases in each
channel.
`)
	cmd.RunE = c.run

	return cmd
}

func (c *cmdPrune) run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 2, 2)
	if exit {
		return err
	}

	// Parse the retention policy.
	retention, err := strconv.Atoi(args[1])
	if err != nil {
		return err
	}

	// Read the index.
	var metaIndex releases.Index

	metaFile, err := os.Open(filepath.Join(args[0], "index.json"))
	if err != nil {
		return err
	}

	defer func() { _ = metaFile.Close() }()

	err = json.NewDecoder(metaFile).Decode(&metaIndex)
	if err != nil {
		return err
	}

	// Identify the releases to delete. The index is sorted newest first,
	// so the first <count> entries seen per channel are the keepers.
	releasesPerChannel := map[string]int{}

	for _, release := range metaIndex.Releases {
		releasesPerChannel[release.Channel]++
		if releasesPerChannel[release.Channel] <= retention {
			continue
		}

		slog.InfoContext(ctx, "Removing old release", "version", release.Version, "channel", release.Channel)

		err = os.RemoveAll(filepath.Join(args[0], strings.TrimPrefix(release.URL, "/")))
		if err != nil {
			return err
		}
	}

	// Re-generate the index.
	err = generateIndex(ctx, args[0])
	if err != nil {
		return err
	}

	return nil
}
