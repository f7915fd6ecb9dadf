package releases

// ReleaseFileType represents the type in a release file.
type ReleaseFileType string

const (
	// ReleaseFileTypeUndefined represents an unknown file type.
	ReleaseFileTypeUndefined ReleaseFileType = ""

	// ReleaseFileTypePackage represents the zipped application tree.
	ReleaseFileTypePackage ReleaseFileType = "package"

	// ReleaseFileTypeChecksum represents a detached checksum file.
	ReleaseFileTypeChecksum ReleaseFileType = "checksum"

	// ReleaseFileTypeChangelog represents a standalone changelog document.
	ReleaseFileTypeChangelog ReleaseFileType = "changelog"
)

// ReleaseFileTypes is a map of the supported release file types.
var ReleaseFileTypes = map[ReleaseFileType]struct{}{
	ReleaseFileTypeUndefined: {},
	ReleaseFileTypePackage:   {},
	ReleaseFileTypeChecksum:  {},
	ReleaseFileTypeChangelog: {},
}

func (r *ReleaseFileType) String() string {
	return string(*r)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (r *ReleaseFileType) MarshalText() ([]byte, error) {
	return []byte(*r), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (r *ReleaseFileType) UnmarshalText(text []byte) error {
	*r = ReleaseFileType(text)

	return nil
}
