package api

// UpdateEvent is emitted on every update state transition and on download progress.
// A user interface renders these; the updater never talks to the user directly.
type UpdateEvent struct {
	Status UpdateStatus `json:"status" yaml:"status"`

	Version    string `json:"version,omitempty"     yaml:"version,omitempty"`
	Changelog  string `json:"changelog,omitempty"   yaml:"changelog,omitempty"`
	BytesDone  int64  `json:"bytes_done,omitempty"  yaml:"bytes_done,omitempty"`
	BytesTotal int64  `json:"bytes_total,omitempty" yaml:"bytes_total,omitempty"`
	Message    string `json:"message,omitempty"     yaml:"message,omitempty"`
	Reason     string `json:"reason,omitempty"      yaml:"reason,omitempty"`
}

// Percent returns the download progress as a value between 0 and 100, or -1
// when the total size isn't known.
func (e *UpdateEvent) Percent() float64 {
	if e.BytesTotal <= 0 {
		return -1
	}

	return 100 * float64(e.BytesDone) / float64(e.BytesTotal)
}
