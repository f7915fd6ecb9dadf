package api

// UpdateStatus represents the current stage of an update attempt.
type UpdateStatus string

const (
	// UpdateStatusIdle represents an updater with no update in flight.
	UpdateStatusIdle UpdateStatus = "idle"

	// UpdateStatusChecking represents an in-progress release check.
	UpdateStatusChecking UpdateStatus = "checking"

	// UpdateStatusAvailable represents a known newer release, not yet downloaded.
	UpdateStatusAvailable UpdateStatus = "available"

	// UpdateStatusDownloading represents an in-progress package download.
	UpdateStatusDownloading UpdateStatus = "downloading"

	// UpdateStatusVerifying represents an in-progress package verification.
	UpdateStatusVerifying UpdateStatus = "verifying"

	// UpdateStatusStaged represents a verified package extracted and ready to install.
	UpdateStatusStaged UpdateStatus = "staged"

	// UpdateStatusCommitting represents an update being handed off to the install script.
	UpdateStatusCommitting UpdateStatus = "committing"

	// UpdateStatusHandedOff represents a launched install script; the process is about to exit.
	UpdateStatusHandedOff UpdateStatus = "handed-off"

	// UpdateStatusFailed represents a failed update attempt.
	UpdateStatusFailed UpdateStatus = "failed"
)

// UpdateStatuses is a map of the supported update statuses.
var UpdateStatuses = map[UpdateStatus]struct{}{
	UpdateStatusIdle:        {},
	UpdateStatusChecking:    {},
	UpdateStatusAvailable:   {},
	UpdateStatusDownloading: {},
	UpdateStatusVerifying:   {},
	UpdateStatusStaged:      {},
	UpdateStatusCommitting:  {},
	UpdateStatusHandedOff:   {},
	UpdateStatusFailed:      {},
}

func (u *UpdateStatus) String() string {
	return string(*u)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (u *UpdateStatus) MarshalText() ([]byte, error) {
	return []byte(*u), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (u *UpdateStatus) UnmarshalText(text []byte) error {
	*u = UpdateStatus(text)

	return nil
}
