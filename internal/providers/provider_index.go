package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/quotedesk/selfupdate/api"
	"github.com/quotedesk/selfupdate/api/releases"
	"github.com/quotedesk/selfupdate/internal/version"
)

// The release index provider.
type index struct {
	config map[string]string

	serverURL string
	mirrorURL string
	channel   string
	client    *http.Client

	lastCheck time.Time // In system's timezone.
	latest    *api.ReleaseDescriptor
	mu        sync.Mutex
}

func (p *index) ClearCache(_ context.Context) error {
	// Reset the last check time.
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastCheck = time.Time{}

	return nil
}

func (*index) Type() string {
	return "index"
}

func (p *index) Latest(ctx context.Context) (*api.ReleaseDescriptor, error) {
	err := p.checkRelease(ctx)
	if err != nil {
		return nil, err
	}

	return p.latest, nil
}

func (p *index) load(_ context.Context) error {
	// Set up the configuration.
	p.serverURL = strings.TrimSuffix(p.config["server_url"], "/")
	p.mirrorURL = strings.TrimSuffix(p.config["mirror_url"], "/")
	p.channel = p.config["channel"]
	p.client = &http.Client{Timeout: 30 * time.Second}

	// Basic validation.
	if p.serverURL == "" {
		return errors.New("index provider requires a server_url")
	}

	if p.channel == "" {
		p.channel = "stable"
	}

	return nil
}

func (p *index) checkRelease(ctx context.Context) error {
	// Acquire lock.
	p.mu.Lock()
	defer p.mu.Unlock()

	// Only talk to the release server once an hour.
	if p.latest != nil && !p.lastCheck.IsZero() && p.lastCheck.Add(time.Hour).After(time.Now()) {
		return nil
	}

	// Get the release index, falling back to the mirror only once the
	// primary's retry budget is exhausted.
	indexURL := p.serverURL + "/index.json"

	resp, err := TryRequest(ctx, p.client, indexURL)
	if err != nil && p.mirrorURL != "" && ctx.Err() == nil {
		slog.Warn("Release index unreachable, falling back to mirror", "primary", indexURL, "mirror", p.mirrorURL)

		indexURL = p.mirrorURL + "/index.json"
		resp, err = TryRequest(ctx, p.client, indexURL)
	}

	if err != nil {
		return fmt.Errorf("release index unreachable (%v): %w", err, ErrProviderUnavailable)
	}

	defer resp.Body.Close()

	// Parse the release list. A document that fetched fine but doesn't parse
	// is reported as-is; the mirror would only serve the same bytes again.
	idx := &releases.Index{}

	err = json.NewDecoder(resp.Body).Decode(idx)
	if err != nil {
		return fmt.Errorf("%w at %q: %v", ErrInvalidIndex, indexURL, err)
	}

	// Pick the newest release for the configured channel.
	var best *releases.ReleaseFull

	var bestVersion *version.Version

	for i, rel := range idx.Releases {
		if rel.Channel != "" && rel.Channel != p.channel {
			continue
		}

		v, err := version.Parse(rel.Version)
		if err != nil {
			continue
		}

		if best == nil || v.NewerThan(bestVersion) {
			best = &idx.Releases[i]
			bestVersion = v
		}
	}

	if best == nil {
		return ErrNoUpdateAvailable
	}

	// Locate the package file for this platform.
	file, err := pickPackage(&best.Release)
	if err != nil {
		return err
	}

	fileURL := p.resolveURL(best.URL, bestVersion.String()) + "/" + file.Filename

	// Record the release.
	p.lastCheck = time.Now()
	p.latest = &api.ReleaseDescriptor{
		Version:        bestVersion.Canonical(),
		DisplayVersion: bestVersion.String(),
		Channel:        best.Channel,
		Changelog:      best.Changelog,
		PublishedAt:    best.PublishedAt,
		Severity:       best.Severity,
		Filename:       file.Filename,
		URL:            fileURL,
		MirrorURL:      p.mirrorFileURL(fileURL),
		Sha256:         file.Sha256,
		Size:           file.Size,
	}

	return nil
}

// resolveURL turns a release's URL field into an absolute base URL. An empty
// field means the conventional per-version directory under the server root.
func (p *index) resolveURL(releaseURL string, releaseVersion string) string {
	if releaseURL == "" {
		return p.serverURL + "/" + releaseVersion
	}

	if strings.Contains(releaseURL, "://") {
		return strings.TrimSuffix(releaseURL, "/")
	}

	return p.serverURL + "/" + strings.Trim(releaseURL, "/")
}

// mirrorFileURL maps a package URL onto the mirror. Mirrors either replicate
// the primary's layout or act as a plain URL prefix proxy.
func (p *index) mirrorFileURL(fileURL string) string {
	if p.mirrorURL == "" {
		return ""
	}

	if strings.HasPrefix(fileURL, p.serverURL) {
		return p.mirrorURL + strings.TrimPrefix(fileURL, p.serverURL)
	}

	return p.mirrorURL + "/" + fileURL
}

// pickPackage selects the package file for the local platform, preferring an
// exact OS/architecture match over a platform-neutral package.
func pickPackage(rel *releases.Release) (*releases.ReleaseFile, error) {
	var neutral *releases.ReleaseFile

	for i, file := range rel.Files {
		if file.Type != releases.ReleaseFileTypePackage {
			continue
		}

		if file.OS == runtime.GOOS && file.Architecture == runtime.GOARCH {
			return &rel.Files[i], nil
		}

		if file.OS == "" && file.Architecture == "" && neutral == nil {
			neutral = &rel.Files[i]
		}
	}

	if neutral != nil {
		return neutral, nil
	}

	return nil, ErrNoPackage
}
