package releases

// ReleaseSeverity represents the severity field in a release.
type ReleaseSeverity string

const (
	// ReleaseSeverityNone represents an unknown/unset severity.
	ReleaseSeverityNone ReleaseSeverity = "none"

	// ReleaseSeverityLow represents the lowest severity.
	ReleaseSeverityLow ReleaseSeverity = "low"

	// ReleaseSeverityMedium represents the medium severity.
	ReleaseSeverityMedium ReleaseSeverity = "medium"

	// ReleaseSeverityHigh represents the high severity.
	ReleaseSeverityHigh ReleaseSeverity = "high"

	// ReleaseSeverityCritical represents the critical severity.
	ReleaseSeverityCritical ReleaseSeverity = "critical"
)

// ReleaseSeverities is a map of the supported release severities.
var ReleaseSeverities = map[ReleaseSeverity]struct{}{
	ReleaseSeverityNone:     {},
	ReleaseSeverityLow:      {},
	ReleaseSeverityMedium:   {},
	ReleaseSeverityHigh:     {},
	ReleaseSeverityCritical: {},
}

func (r *ReleaseSeverity) String() string {
	return string(*r)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (r *ReleaseSeverity) MarshalText() ([]byte, error) {
	return []byte(*r), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (r *ReleaseSeverity) UnmarshalText(text []byte) error {
	*r = ReleaseSeverity(text)

	return nil
}
