// Package version implements parsing and ordering of application release versions.
package version

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// corePattern splits a version into its dotted numeric core and a trailing suffix.
var corePattern = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)(.*)$`)

// Version represents a parsed application version. Ordering only considers the
// dotted numeric core; any trailing suffix is kept for display purposes.
type Version struct {
	display string
	core    *goversion.Version
	suffix  string
}

// Parse parses a version string such as "2.6.0", "v2.7" or "2.6.0-beta".
func Parse(s string) (*Version, error) {
	s = strings.TrimSpace(s)

	m := corePattern.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.New("invalid version string '" + s + "'")
	}

	core, err := goversion.NewVersion(m[1])
	if err != nil {
		return nil, errors.New("invalid version string '" + s + "': " + err.Error())
	}

	return &Version{
		display: s,
		core:    core,
		suffix:  m[2],
	}, nil
}

// ParseTag parses a release tag, stripping any of the given prefixes first.
func ParseTag(tag string, prefixes ...string) (*Version, error) {
	for _, prefix := range prefixes {
		tag = strings.TrimPrefix(tag, prefix)
	}

	return Parse(tag)
}

// Zero returns the lowest possible version.
func Zero() *Version {
	v, _ := Parse("0.0.0")

	return v
}

// String returns the version exactly as it was published.
func (v *Version) String() string {
	return v.display
}

// Canonical returns the dotted numeric core used for ordering.
func (v *Version) Canonical() string {
	segments := v.core.Segments()

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, strconv.Itoa(s))
	}

	return strings.Join(parts, ".")
}

// Compare returns -1, 0 or 1 depending on whether v orders below, equal to or
// above other. Missing components count as zero, suffixes are ignored.
func (v *Version) Compare(other *Version) int {
	return v.core.Compare(other.core)
}

// NewerThan returns true if v orders strictly above other.
func (v *Version) NewerThan(other *Version) bool {
	return v.Compare(other) > 0
}
