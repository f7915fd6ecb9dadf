package api

import (
	"time"

	"github.com/quotedesk/selfupdate/api/releases"
)

// ReleaseDescriptor describes a concrete downloadable application release as
// reported by a release provider.
type ReleaseDescriptor struct {
	// Version is the canonical version with any tag prefix stripped, used for ordering.
	Version string `json:"version" yaml:"version"`

	// DisplayVersion is the version exactly as published, including any suffix.
	DisplayVersion string `json:"display_version" yaml:"display_version"`

	Channel     string                   `json:"channel,omitempty"   yaml:"channel,omitempty"`
	Changelog   string                   `json:"changelog,omitempty" yaml:"changelog,omitempty"`
	PublishedAt time.Time                `json:"published_at"        yaml:"published_at"`
	Severity    releases.ReleaseSeverity `json:"severity,omitempty"  yaml:"severity,omitempty"`

	// Filename is the package file name, URL its download location and
	// MirrorURL an optional secondary location tried only once URL is exhausted.
	Filename  string `json:"filename"             yaml:"filename"`
	URL       string `json:"url"                  yaml:"url"`
	MirrorURL string `json:"mirror_url,omitempty" yaml:"mirror_url,omitempty"`

	// Sha256 is the expected package digest; empty means the provider offers none.
	Sha256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Size   int64  `json:"size,omitempty"   yaml:"size,omitempty"`
}
