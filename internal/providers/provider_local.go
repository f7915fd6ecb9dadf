package providers

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/quotedesk/selfupdate/api"
	"github.com/quotedesk/selfupdate/internal/version"
)

// The Local provider. It serves releases from a plain directory holding a
// RELEASE file with the version string next to the package zip, which suits
// air-gapped installs and tests.
type local struct {
	config map[string]string
	path   string

	latest *api.ReleaseDescriptor
}

func (p *local) ClearCache(ctx context.Context) error {
	return p.checkRelease(ctx)
}

func (*local) Type() string {
	return "local"
}

func (p *local) Latest(_ context.Context) (*api.ReleaseDescriptor, error) {
	if p.latest == nil {
		return nil, ErrNoUpdateAvailable
	}

	return p.latest, nil
}

func (p *local) load(ctx context.Context) error {
	p.path = p.config["path"]
	if p.path == "" {
		return errors.New("local provider requires a path")
	}

	// Deal with missing path.
	_, err := os.Lstat(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrProviderUnavailable
		}

		return err
	}

	// Get latest release.
	return p.checkRelease(ctx)
}

func (p *local) checkRelease(_ context.Context) error {
	// Parse the version string.
	body, err := os.ReadFile(filepath.Join(p.path, "RELEASE"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNoUpdateAvailable
		}

		return err
	}

	v, err := version.Parse(strings.TrimSpace(string(body)))
	if err != nil {
		return err
	}

	// Locate the package zip.
	entries, err := os.ReadDir(p.path)
	if err != nil {
		return err
	}

	packageName := pickZipEntry(entries)
	if packageName == "" {
		return ErrNoPackage
	}

	packagePath := filepath.Join(p.path, packageName)

	info, err := os.Stat(packagePath)
	if err != nil {
		return err
	}

	// Read the detached checksum when present.
	sha256sum := ""

	sumBody, err := os.ReadFile(packagePath + ".sha256")
	if err == nil {
		fields := strings.Fields(string(sumBody))
		if len(fields) > 0 && isHexDigest(fields[0]) {
			sha256sum = strings.ToLower(fields[0])
		}
	}

	p.latest = &api.ReleaseDescriptor{
		Version:        v.Canonical(),
		DisplayVersion: v.String(),
		PublishedAt:    info.ModTime(),
		Filename:       packageName,
		URL:            packagePath,
		Sha256:         sha256sum,
		Size:           info.Size(),
	}

	return nil
}

// pickZipEntry selects the package zip from a directory listing, preferring a
// platform-specific name.
func pickZipEntry(entries []os.DirEntry) string {
	platformSuffix := "_" + runtime.GOOS + "_" + runtime.GOARCH + ".zip"

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), platformSuffix) {
			return entry.Name()
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".zip") {
			return entry.Name()
		}
	}

	return ""
}
