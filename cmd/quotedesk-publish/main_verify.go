package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quotedesk/selfupdate/api/releases"
)

type cmdVerify struct {
	global *cmdGlobal
}

func (c *cmdVerify) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "verify <path>"
	cmd.Short = "Verify the release server tree"
	cmd.Long = formatSection("Description",
		`Verify the release server tree

This re-hashes every published file and compares it against the
recorded metadata, reporting any file that is missing, truncated or
corrupted.
`)
	cmd.RunE = c.run

	return cmd
}

func (c *cmdVerify) run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	targetPath := args[0]

	// Read the index.
	var metaIndex releases.Index

	metaFile, err := os.Open(filepath.Join(targetPath, "index.json"))
	if err != nil {
		return err
	}

	defer func() { _ = metaFile.Close() }()

	err = json.NewDecoder(metaFile).Decode(&metaIndex)
	if err != nil {
		return err
	}

	// Check every file of every release.
	var muProblems sync.Mutex

	problems := []string{}

	g := new(errgroup.Group)

	checked := 0

	for _, release := range metaIndex.Releases {
		releaseDir := filepath.Join(targetPath, strings.TrimPrefix(release.URL, "/"))

		for _, file := range release.Files {
			checked++

			g.Go(func() error {
				sha256sum, size, err := hashFile(filepath.Join(releaseDir, file.Filename))

				var problem string

				switch {
				case os.IsNotExist(err):
					problem = fmt.Sprintf("%s/%s: missing", release.Version, file.Filename)

				case err != nil:
					return err

				case size != file.Size:
					problem = fmt.Sprintf("%s/%s: size %d, expected %d", release.Version, file.Filename, size, file.Size)

				case sha256sum != file.Sha256:
					problem = fmt.Sprintf("%s/%s: checksum mismatch", release.Version, file.Filename)
				}

				if problem != "" {
					muProblems.Lock()

					problems = append(problems, problem)

					muProblems.Unlock()
				}

				return nil
			})
		}
	}

	err = g.Wait()
	if err != nil {
		return err
	}

	if len(problems) > 0 {
		sort.Strings(problems)

		for _, problem := range problems {
			slog.ErrorContext(ctx, "Verification failed", "file", problem)
		}

		return fmt.Errorf("%d of %d files failed verification", len(problems), checked)
	}

	slog.InfoContext(ctx, "Release server tree verified", "releases", len(metaIndex.Releases), "files", checked)

	return nil
}
