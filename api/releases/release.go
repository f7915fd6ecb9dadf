package releases

import (
	"time"
)

// ReleaseFull represents a release entry in the index.json file.
type ReleaseFull struct {
	Release

	URL string `json:"url,omitempty"`
}

// Release represents the content of release.json for a single application build.
type Release struct {
	Format string `json:"format"`

	Channel     string          `json:"channel"`
	Changelog   string          `json:"changelog,omitempty"`
	Files       []ReleaseFile   `json:"files"`
	PublishedAt time.Time       `json:"published_at"`
	Severity    ReleaseSeverity `json:"severity"`
	Version     string          `json:"version"`
}
