// Package staging downloads release packages, verifies them and extracts them
// next to the installation root, ready for the install script to swap in.
package staging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/lxc/incus/v6/shared/revert"

	"github.com/quotedesk/selfupdate/api"
)

// ErrIntegrity is returned when a downloaded package doesn't match its
// expected checksum. The offending file is deleted before returning.
var ErrIntegrity = errors.New("package checksum mismatch")

// ErrDownloadFailed is returned once every download location has exhausted its
// retry budget.
var ErrDownloadFailed = errors.New("package download failed")

// downloadBackOff returns the retry policy applied to each download location.
// Variable so tests can substitute a quick policy.
var downloadBackOff = func(ctx context.Context) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     time.Second,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	return backoff.WithMaxRetries(backoff.WithContext(b, ctx), 2)
}

// StagedPackage represents a verified and extracted release package.
type StagedPackage struct {
	// Version of the staged release.
	Version string

	// StagingDir is the directory holding everything below; it sits next to
	// the installation root so renames out of it stay on one filesystem.
	StagingDir string

	// ArchivePath is the verified package zip.
	ArchivePath string

	// SourceRoot is the extracted application tree to be swapped in.
	SourceRoot string

	Sha256 string
	Size   int64
}

// Discard removes the staging directory and everything in it.
func (s *StagedPackage) Discard() error {
	return os.RemoveAll(s.StagingDir)
}

// Fetcher downloads and stages release packages.
type Fetcher struct {
	client     *http.Client
	targetRoot string
	progress   func(done int64, total int64)
	verify     func()
}

// NewFetcher returns a fetcher staging packages next to the given installation
// root. progressFunc may be nil.
func NewFetcher(targetRoot string, progressFunc func(done int64, total int64)) *Fetcher {
	return &Fetcher{
		client:     &http.Client{},
		targetRoot: strings.TrimRight(targetRoot, "/\\"),
		progress:   progressFunc,
	}
}

// OnVerify registers a callback invoked when a completed download enters
// checksum verification.
func (f *Fetcher) OnVerify(fn func()) {
	f.verify = fn
}

// Fetch downloads the release package, verifies its checksum and extracts it.
// Extraction only ever happens after successful verification. On any error the
// entire staging directory is removed.
func (f *Fetcher) Fetch(ctx context.Context, release *api.ReleaseDescriptor) (*StagedPackage, error) {
	reverter := revert.New()
	defer reverter.Fail()

	// Stage as a sibling of the installation root.
	stagingDir := f.targetRoot + ".staging-" + uuid.NewString()

	err := os.MkdirAll(stagingDir, 0o700)
	if err != nil {
		return nil, err
	}

	reverter.Add(func() { _ = os.RemoveAll(stagingDir) })

	// Download and verify the package.
	archivePath, size, err := f.download(ctx, release, stagingDir)
	if err != nil {
		return nil, err
	}

	// Extract the verified archive.
	extractedDir := filepath.Join(stagingDir, "extracted")

	err = extractZip(ctx, archivePath, extractedDir)
	if err != nil {
		return nil, fmt.Errorf("extracting %q: %w", release.Filename, err)
	}

	sourceRoot, err := findSourceRoot(extractedDir)
	if err != nil {
		return nil, err
	}

	reverter.Success()

	return &StagedPackage{
		Version:     release.Version,
		StagingDir:  stagingDir,
		ArchivePath: archivePath,
		SourceRoot:  sourceRoot,
		Sha256:      release.Sha256,
		Size:        size,
	}, nil
}

// download tries the primary location and then the mirror, each with its own
// retry budget. A checksum mismatch aborts immediately; re-fetching the same
// corrupt bytes isn't going to help.
func (f *Fetcher) download(ctx context.Context, release *api.ReleaseDescriptor, stagingDir string) (string, int64, error) {
	urls := []string{release.URL}
	if release.MirrorURL != "" {
		urls = append(urls, release.MirrorURL)
	}

	var lastErr error

	for i, url := range urls {
		if i > 0 {
			slog.Warn("Package download failed, trying mirror", "version", release.DisplayVersion, "mirror", url)
		}

		path, size, err := f.downloadWithRetry(ctx, url, release, stagingDir)
		if err == nil {
			return path, size, nil
		}

		lastErr = err

		if errors.Is(err, ErrIntegrity) || ctx.Err() != nil {
			return "", 0, err
		}
	}

	return "", 0, fmt.Errorf("%w: %v", ErrDownloadFailed, lastErr)
}

func (f *Fetcher) downloadWithRetry(ctx context.Context, url string, release *api.ReleaseDescriptor, stagingDir string) (string, int64, error) {
	var path string

	var size int64

	op := func() error {
		p, n, err := f.downloadAttempt(ctx, url, release, stagingDir)
		if err != nil {
			if errors.Is(err, ErrIntegrity) {
				return backoff.Permanent(err)
			}

			return err
		}

		path, size = p, n

		return nil
	}

	err := backoff.Retry(op, downloadBackOff(ctx))
	if err != nil {
		return "", 0, err
	}

	return path, size, nil
}

// downloadAttempt streams the package into a fresh temporary file, hashing as
// it goes. Failed or corrupt files are deleted; partial downloads are never
// resumed or reused.
func (f *Fetcher) downloadAttempt(ctx context.Context, url string, release *api.ReleaseDescriptor, stagingDir string) (string, int64, error) {
	body, total, closer, err := f.open(ctx, url)
	if err != nil {
		return "", 0, err
	}

	defer closer()

	if total <= 0 {
		total = release.Size
	}

	// Every attempt writes to its own file.
	fd, err := os.CreateTemp(stagingDir, "download-*.partial")
	if err != nil {
		return "", 0, err
	}

	partialPath := fd.Name()

	discard := func() {
		_ = fd.Close()
		_ = os.Remove(partialPath)
	}

	// Setup a sha256 hasher.
	h := sha256.New()

	// Setup the main reader.
	tr := io.TeeReader(body, h)

	// Read in chunks to avoid excessive memory consumption.
	written := int64(0)

	for {
		if ctx.Err() != nil {
			discard()

			return "", 0, ctx.Err()
		}

		n, err := io.CopyN(fd, tr, 4*1024*1024)
		written += n

		if f.progress != nil {
			f.progress(written, total)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			discard()

			if ctx.Err() != nil {
				return "", 0, ctx.Err()
			}

			return "", 0, errors.New("io.CopyN() error: " + err.Error())
		}
	}

	if f.verify != nil {
		f.verify()
	}

	// Check the hash.
	if release.Sha256 != "" {
		digest := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(release.Sha256, digest) {
			discard()

			return "", 0, fmt.Errorf("%w: expected %s, got %s", ErrIntegrity, release.Sha256, digest)
		}
	} else {
		slog.Warn("Release publishes no checksum, skipping verification", "version", release.DisplayVersion)
	}

	err = fd.Close()
	if err != nil {
		_ = os.Remove(partialPath)

		return "", 0, err
	}

	// Give the verified archive its final name.
	archivePath := filepath.Join(stagingDir, release.Filename)

	err = os.Rename(partialPath, archivePath)
	if err != nil {
		_ = os.Remove(partialPath)

		return "", 0, err
	}

	return archivePath, written, nil
}

// open returns a reader for the package, either over HTTP or straight from
// disk for local providers.
func (f *Fetcher) open(ctx context.Context, url string) (io.Reader, int64, func(), error) {
	if !strings.Contains(url, "://") {
		fd, err := os.Open(url)
		if err != nil {
			return nil, 0, nil, err
		}

		info, err := fd.Stat()
		if err != nil {
			_ = fd.Close()

			return nil, 0, nil, err
		}

		return fd, info.Size(), func() { _ = fd.Close() }, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, nil, errors.New("unable to create http request: " + err.Error())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, nil, errors.New("unable to get http response: " + err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, 0, nil, errors.New("unexpected HTTP status: " + resp.Status)
	}

	return resp.Body, resp.ContentLength, func() { _ = resp.Body.Close() }, nil
}
