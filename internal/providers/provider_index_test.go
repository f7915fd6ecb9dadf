package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/quotedesk/selfupdate/api/releases"
)

// quickRetries swaps the request retry policy for a near-instant one.
func quickRetries(t *testing.T) {
	t.Helper()

	previous := retryBackOff
	retryBackOff = func(ctx context.Context) backoff.BackOff {
		return backoff.WithMaxRetries(backoff.WithContext(backoff.NewConstantBackOff(10*time.Millisecond), ctx), 2)
	}

	t.Cleanup(func() {
		retryBackOff = previous
	})
}

const indexJSON = `{
	"format": "1.0",
	"releases": [
		{
			"channel": "stable",
			"version": "2.5.0",
			"published_at": "2026-05-01T10:00:00Z",
			"files": [
				{"filename": "quotedesk_2.5.0.zip", "sha256": "` + testDigestOld + `", "size": 100, "type": "package"}
			]
		},
		{
			"channel": "stable",
			"version": "2.6.0",
			"changelog": "Faster charts.",
			"published_at": "2026-08-01T10:00:00Z",
			"severity": "high",
			"files": [
				{"filename": "quotedesk_2.6.0.zip", "sha256": "` + testDigestNew + `", "size": 200, "type": "package"}
			]
		},
		{
			"channel": "beta",
			"version": "2.7.0-beta",
			"published_at": "2026-08-10T10:00:00Z",
			"files": [
				{"filename": "quotedesk_2.7.0-beta.zip", "sha256": "` + testDigestBeta + `", "size": 300, "type": "package"}
			]
		}
	]
}`

const (
	testDigestOld  = "1111111111111111111111111111111111111111111111111111111111111111"
	testDigestNew  = "2222222222222222222222222222222222222222222222222222222222222222"
	testDigestBeta = "3333333333333333333333333333333333333333333333333333333333333333"
)

func TestIndexProviderLatest(t *testing.T) {
	t.Parallel()
	quickRetries(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/index.json", r.URL.Path)
		_, _ = w.Write([]byte(indexJSON))
	}))
	defer server.Close()

	provider, err := Load(context.Background(), "index", map[string]string{"server_url": server.URL})
	require.NoError(t, err)
	require.Equal(t, "index", provider.Type())

	latest, err := provider.Latest(context.Background())
	require.NoError(t, err)

	// Newest stable release wins; the beta channel entry is skipped.
	require.Equal(t, "2.6.0", latest.Version)
	require.Equal(t, "quotedesk_2.6.0.zip", latest.Filename)
	require.Equal(t, server.URL+"/2.6.0/quotedesk_2.6.0.zip", latest.URL)
	require.Equal(t, testDigestNew, latest.Sha256)
	require.Equal(t, int64(200), latest.Size)
	require.Equal(t, releases.ReleaseSeverityHigh, latest.Severity)
	require.Empty(t, latest.MirrorURL)
}

func TestIndexProviderChannel(t *testing.T) {
	t.Parallel()
	quickRetries(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(indexJSON))
	}))
	defer server.Close()

	provider, err := Load(context.Background(), "index", map[string]string{"server_url": server.URL, "channel": "beta"})
	require.NoError(t, err)

	latest, err := provider.Latest(context.Background())
	require.NoError(t, err)

	require.Equal(t, "2.7.0", latest.Version)
	require.Equal(t, "2.7.0-beta", latest.DisplayVersion)
}

func TestIndexProviderMirrorFallback(t *testing.T) {
	t.Parallel()
	quickRetries(t)

	var primaryHits atomic.Int64

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		primaryHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(indexJSON))
	}))
	defer mirror.Close()

	provider, err := Load(context.Background(), "index", map[string]string{
		"server_url": primary.URL,
		"mirror_url": mirror.URL,
	})
	require.NoError(t, err)

	latest, err := provider.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2.6.0", latest.Version)

	// The mirror only got consulted after the primary's full retry budget.
	require.Equal(t, int64(3), primaryHits.Load())

	// Mirrored releases point their package URLs at the mirror.
	require.Equal(t, mirror.URL+"/2.6.0/quotedesk_2.6.0.zip", latest.MirrorURL)
}

func TestIndexProviderBadDocument(t *testing.T) {
	t.Parallel()
	quickRetries(t)

	var mirrorHits atomic.Int64

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer primary.Close()

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mirrorHits.Add(1)
		_, _ = w.Write([]byte(indexJSON))
	}))
	defer mirror.Close()

	provider, err := Load(context.Background(), "index", map[string]string{
		"server_url": primary.URL,
		"mirror_url": mirror.URL,
	})
	require.NoError(t, err)

	_, err = provider.Latest(context.Background())
	require.ErrorIs(t, err, ErrInvalidIndex)
	require.ErrorContains(t, err, primary.URL)

	// A malformed document never falls through to the mirror.
	require.Equal(t, int64(0), mirrorHits.Load())
}

func TestIndexProviderUnreachable(t *testing.T) {
	t.Parallel()
	quickRetries(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	server.Close()

	provider, err := Load(context.Background(), "index", map[string]string{"server_url": server.URL})
	require.NoError(t, err)

	_, err = provider.Latest(context.Background())
	require.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestPickPackage(t *testing.T) {
	t.Parallel()

	rel := &releases.Release{
		Version: "2.6.0",
		Files: []releases.ReleaseFile{
			{Filename: "notes.txt", Type: releases.ReleaseFileTypeChangelog},
			{Filename: "generic.zip", Type: releases.ReleaseFileTypePackage},
			{Filename: "native.zip", Type: releases.ReleaseFileTypePackage, OS: runtime.GOOS, Architecture: runtime.GOARCH},
		},
	}

	file, err := pickPackage(rel)
	require.NoError(t, err)
	require.Equal(t, "native.zip", file.Filename)

	// Without a native match the neutral package wins.
	rel.Files = rel.Files[:2]
	file, err = pickPackage(rel)
	require.NoError(t, err)
	require.Equal(t, "generic.zip", file.Filename)

	// No package file at all.
	rel.Files = rel.Files[:1]
	_, err = pickPackage(rel)
	require.ErrorIs(t, err, ErrNoPackage)
}
