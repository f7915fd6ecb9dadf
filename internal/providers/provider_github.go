package providers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	ghapi "github.com/google/go-github/v72/github"

	"github.com/quotedesk/selfupdate/api"
	"github.com/quotedesk/selfupdate/internal/version"
)

// sha256Pattern matches an inline checksum in a release body, e.g. "SHA256: `abc...`".
var sha256Pattern = regexp.MustCompile("(?i)sha256[:=][ `\"']*([a-fA-F0-9]{64})")

// The Github provider.
type github struct {
	gh           *ghapi.Client
	organization string
	repository   string
	tagPrefix    string
	mirrorPrefix string

	config map[string]string

	releaseLastCheck time.Time
	latest           *api.ReleaseDescriptor
	releaseMu        sync.Mutex
}

func (p *github) ClearCache(_ context.Context) error {
	// Reset the last check time.
	p.releaseMu.Lock()
	defer p.releaseMu.Unlock()

	p.releaseLastCheck = time.Time{}

	return nil
}

func (*github) Type() string {
	return "github"
}

func (p *github) Latest(ctx context.Context) (*api.ReleaseDescriptor, error) {
	err := p.checkRelease(ctx)
	if err != nil {
		return nil, err
	}

	return p.latest, nil
}

func (p *github) load(_ context.Context) error {
	// Setup the Github client.
	p.gh = ghapi.NewClient(nil)

	// Parse the configuration.
	fields := strings.SplitN(p.config["repository"], "/", 2)
	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return fmt.Errorf("github provider requires a repository in %q form", "organization/name")
	}

	p.organization = fields[0]
	p.repository = fields[1]

	p.tagPrefix = p.config["tag_prefix"]
	if p.tagPrefix == "" {
		p.tagPrefix = p.repository + "_"
	}

	p.mirrorPrefix = strings.TrimSuffix(p.config["mirror_prefix"], "/")

	return nil
}

func (*github) checkLimit(err error) error {
	_, ok := err.(*ghapi.RateLimitError) //nolint:errorlint
	if ok {
		return ErrProviderUnavailable
	}

	return err
}

func (p *github) checkRelease(ctx context.Context) error {
	// Acquire lock.
	p.releaseMu.Lock()
	defer p.releaseMu.Unlock()

	// Only talk to Github once an hour.
	if p.latest != nil && !p.releaseLastCheck.IsZero() && p.releaseLastCheck.Add(time.Hour).After(time.Now()) {
		return nil
	}

	// Get the latest release.
	release, _, err := p.gh.Repositories.GetLatestRelease(ctx, p.organization, p.repository)
	if err != nil {
		return p.checkLimit(err)
	}

	// Get the list of files for the release.
	assets, _, err := p.gh.Repositories.ListReleaseAssets(ctx, p.organization, p.repository, release.GetID(), nil)
	if err != nil {
		return p.checkLimit(err)
	}

	// Parse the release tag.
	v, err := version.ParseTag(release.GetTagName(), p.tagPrefix, "v")
	if err != nil {
		return fmt.Errorf("release %q: %w", release.GetTagName(), err)
	}

	// Locate the package asset.
	asset := pickZipAsset(assets)
	if asset == nil {
		return ErrNoPackage
	}

	// Find the expected package checksum.
	sha256sum, err := p.releaseSha256(ctx, release, assets, asset.GetName())
	if err != nil {
		return err
	}

	// Record the release.
	packageURL := asset.GetBrowserDownloadURL()

	mirrorURL := ""
	if p.mirrorPrefix != "" {
		mirrorURL = p.mirrorPrefix + "/" + packageURL
	}

	p.releaseLastCheck = time.Now()
	p.latest = &api.ReleaseDescriptor{
		Version:        v.Canonical(),
		DisplayVersion: v.String(),
		Changelog:      release.GetBody(),
		PublishedAt:    release.GetPublishedAt().Time,
		Filename:       asset.GetName(),
		URL:            packageURL,
		MirrorURL:      mirrorURL,
		Sha256:         sha256sum,
		Size:           int64(asset.GetSize()),
	}

	return nil
}

// releaseSha256 finds the expected package digest, either from a detached
// checksum asset or from an inline line in the release notes. An empty string
// means the release publishes no checksum at all.
func (p *github) releaseSha256(ctx context.Context, release *ghapi.RepositoryRelease, assets []*ghapi.ReleaseAsset, packageName string) (string, error) {
	for _, asset := range assets {
		if !isChecksumAsset(asset.GetName(), packageName) {
			continue
		}

		resp, err := TryRequest(ctx, http.DefaultClient, asset.GetBrowserDownloadURL())
		if err != nil {
			return "", fmt.Errorf("checksum asset %q: %w", asset.GetName(), err)
		}

		sum := parseChecksumFile(resp.Body, packageName)

		_ = resp.Body.Close()

		if sum != "" {
			return sum, nil
		}
	}

	// Fall back to an inline checksum in the release notes.
	m := sha256Pattern.FindStringSubmatch(release.GetBody())
	if m != nil {
		return strings.ToLower(m[1]), nil
	}

	return "", nil
}

// pickZipAsset selects the package asset, preferring a platform-specific zip
// over a generic one.
func pickZipAsset(assets []*ghapi.ReleaseAsset) *ghapi.ReleaseAsset {
	platformSuffix := "_" + runtime.GOOS + "_" + runtime.GOARCH + ".zip"

	for _, asset := range assets {
		if strings.HasSuffix(asset.GetName(), platformSuffix) {
			return asset
		}
	}

	for _, asset := range assets {
		if strings.HasSuffix(asset.GetName(), ".zip") {
			return asset
		}
	}

	return nil
}

func isChecksumAsset(name string, packageName string) bool {
	switch name {
	case packageName + ".sha256", "sha256.txt", "SHA256SUMS", "checksums.txt":
		return true
	default:
		return false
	}
}

// parseChecksumFile extracts the digest for the given package from a checksum
// file. Both bare digests and "<digest> <filename>" line formats are accepted.
func parseChecksumFile(r io.Reader, packageName string) string {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())

		switch {
		case len(fields) == 1 && isHexDigest(fields[0]):
			return strings.ToLower(fields[0])
		case len(fields) >= 2 && isHexDigest(fields[0]) && strings.HasSuffix(fields[len(fields)-1], packageName):
			return strings.ToLower(fields[0])
		}
	}

	return ""
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}

	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}

	return true
}
