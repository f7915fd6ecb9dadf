package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/quotedesk/selfupdate/api/releases"
	localversion "github.com/quotedesk/selfupdate/internal/version"
)

// generateIndex rebuilds index.json from the per-release release.json files,
// newest release first.
func generateIndex(ctx context.Context, targetPath string) error {
	// Prepare the index.
	metaIndex := releases.Index{
		Format:   "1.0",
		Releases: []releases.ReleaseFull{},
	}

	// Go through all current releases.
	files, err := os.ReadDir(targetPath)
	if err != nil {
		return err
	}

	for _, entry := range files {
		if !entry.IsDir() {
			continue
		}

		releaseFile, err := os.Open(filepath.Join(targetPath, entry.Name(), "release.json")) //nolint:gosec
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return err
		}

		var release releases.Release

		err = json.NewDecoder(releaseFile).Decode(&release)
		if err != nil {
			return err
		}

		err = releaseFile.Close()
		if err != nil {
			return err
		}

		metaIndex.Releases = append(metaIndex.Releases, releases.ReleaseFull{URL: "/" + entry.Name(), Release: release})
	}

	// Sort the releases, newest first.
	slices.SortFunc(metaIndex.Releases, func(a releases.ReleaseFull, b releases.ReleaseFull) int {
		aVersion, err := localversion.Parse(a.Version)
		if err != nil {
			return 1
		}

		bVersion, err := localversion.Parse(b.Version)
		if err != nil {
			return -1
		}

		return bVersion.Compare(aVersion)
	})

	wr, err := os.Create(filepath.Join(targetPath, "index.json")) //nolint:gosec
	if err != nil {
		return err
	}

	defer func() { _ = wr.Close() }()

	err = json.NewEncoder(wr).Encode(metaIndex)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Index regenerated", "releases", len(metaIndex.Releases))

	return wr.Close()
}
