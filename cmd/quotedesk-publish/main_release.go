package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/lxc/incus/v6/shared/revert"
	"github.com/spf13/cobra"

	"github.com/quotedesk/selfupdate/api/releases"
	localversion "github.com/quotedesk/selfupdate/internal/version"
)

type cmdRelease struct {
	global *cmdGlobal

	flagChannel   string
	flagSeverity  string
	flagChangelog string
	flagOS        string
	flagArch      string
}

func (c *cmdRelease) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "release <build-dir> <path> <version>"
	cmd.Short = "Publish an application build"
	cmd.Long = formatSection("Description",
		`Publish an application build

This packages the given build directory into a zip archive, records its
checksum and metadata and adds the release to the server index.

Running it again with the same version but a different --os/--arch pair
adds another platform package to the existing release.
`)
	cmd.RunE = c.run

	cmd.Flags().StringVar(&c.flagChannel, "channel", "beta", "Channel to publish into ('stable' or 'beta')")
	cmd.Flags().StringVar(&c.flagSeverity, "severity", "none", "Release severity")
	cmd.Flags().StringVar(&c.flagChangelog, "changelog", "", "Path to a changelog text file")
	cmd.Flags().StringVar(&c.flagOS, "os", runtime.GOOS, "Operating system the build targets")
	cmd.Flags().StringVar(&c.flagArch, "arch", runtime.GOARCH, "Architecture the build targets")

	return cmd
}

func (c *cmdRelease) run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 3, 3)
	if exit {
		return err
	}

	buildDir := args[0]
	targetPath := args[1]

	v, err := localversion.Parse(args[2])
	if err != nil {
		return fmt.Errorf("invalid release version %q: %w", args[2], err)
	}

	if !slices.Contains([]string{"stable", "beta"}, c.flagChannel) {
		return fmt.Errorf("invalid channel %q", c.flagChannel)
	}

	severity := releases.ReleaseSeverity(c.flagSeverity)

	_, ok := releases.ReleaseSeverities[severity]
	if !ok {
		return fmt.Errorf("invalid severity %q", c.flagSeverity)
	}

	info, err := os.Stat(buildDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("build directory %q doesn't exist", buildDir)
	}

	err = os.MkdirAll(targetPath, 0o755)
	if err != nil {
		return err
	}

	releaseName := v.String()
	releaseDir := filepath.Join(targetPath, releaseName)

	reverter := revert.New()
	defer reverter.Fail()

	// Load the existing metadata when adding another platform package.
	meta, fresh, err := c.loadOrCreateMeta(releaseDir, releaseName)
	if err != nil {
		return err
	}

	if fresh {
		reverter.Add(func() { _ = os.RemoveAll(releaseDir) })
	}

	// Package the build.
	packageName := fmt.Sprintf("quotedesk-%s-%s-%s.zip", releaseName, c.flagOS, c.flagArch)

	for _, file := range meta.Files {
		if file.OS == c.flagOS && file.Architecture == c.flagArch && file.Type == releases.ReleaseFileTypePackage {
			return fmt.Errorf("release %q already has a package for %s/%s", releaseName, c.flagOS, c.flagArch)
		}
	}

	packagePath := filepath.Join(releaseDir, packageName)

	err = zipDirectory(buildDir, packagePath, "quotedesk-"+releaseName)
	if err != nil {
		return err
	}

	if !fresh {
		reverter.Add(func() { _ = os.Remove(packagePath) })
	}

	sha256sum, size, err := hashFile(packagePath)
	if err != nil {
		return err
	}

	meta.Files = append(meta.Files, releases.ReleaseFile{
		Architecture: c.flagArch,
		Filename:     packageName,
		OS:           c.flagOS,
		Sha256:       sha256sum,
		Size:         size,
		Type:         releases.ReleaseFileTypePackage,
	})

	// Attach the changelog.
	if c.flagChangelog != "" {
		// #nosec G304
		body, err := os.ReadFile(c.flagChangelog)
		if err != nil {
			return err
		}

		meta.Changelog = string(body)

		err = os.WriteFile(filepath.Join(releaseDir, "changelog.txt"), body, 0o644) //nolint:gosec
		if err != nil {
			return err
		}

		if !slices.ContainsFunc(meta.Files, func(f releases.ReleaseFile) bool { return f.Type == releases.ReleaseFileTypeChangelog }) {
			meta.Files = append(meta.Files, releases.ReleaseFile{
				Filename: "changelog.txt",
				Sha256:   digestOf(body),
				Size:     int64(len(body)),
				Type:     releases.ReleaseFileTypeChangelog,
			})
		}
	}

	// Write the release metadata.
	err = writeMeta(releaseDir, meta)
	if err != nil {
		return err
	}

	// Re-generate the index.
	err = generateIndex(ctx, targetPath)
	if err != nil {
		return err
	}

	reverter.Success()

	slog.InfoContext(ctx, "Release published", "version", releaseName, "channel", meta.Channel, "os", c.flagOS, "arch", c.flagArch, "size", size)

	return nil
}

// loadOrCreateMeta returns the existing release metadata, or a fresh one
// along with its newly created directory.
func (c *cmdRelease) loadOrCreateMeta(releaseDir string, releaseName string) (*releases.Release, bool, error) {
	metaPath := filepath.Join(releaseDir, "release.json")

	// #nosec G304
	fd, err := os.Open(metaPath)
	if err == nil {
		defer func() { _ = fd.Close() }()

		meta := &releases.Release{}

		err = json.NewDecoder(fd).Decode(meta)
		if err != nil {
			return nil, false, err
		}

		return meta, false, nil
	}

	if !os.IsNotExist(err) {
		return nil, false, err
	}

	err = os.MkdirAll(releaseDir, 0o755)
	if err != nil {
		return nil, false, err
	}

	entries, err := os.ReadDir(releaseDir)
	if err != nil {
		return nil, false, err
	}

	if len(entries) > 0 {
		return nil, false, errors.New("release directory exists but has no release.json")
	}

	return &releases.Release{
		Format:      "1.0",
		Channel:     c.flagChannel,
		Files:       []releases.ReleaseFile{},
		PublishedAt: time.Now().UTC(),
		Severity:    releases.ReleaseSeverity(c.flagSeverity),
		Version:     releaseName,
	}, true, nil
}

func writeMeta(releaseDir string, meta *releases.Release) error {
	wr, err := os.Create(filepath.Join(releaseDir, "release.json")) //nolint:gosec
	if err != nil {
		return err
	}

	defer func() { _ = wr.Close() }()

	err = json.NewEncoder(wr).Encode(meta)
	if err != nil {
		return err
	}

	return wr.Close()
}
