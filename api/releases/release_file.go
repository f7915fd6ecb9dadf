package releases

// ReleaseFile represents a file entry in a release.
type ReleaseFile struct {
	Architecture string          `json:"architecture"`
	Filename     string          `json:"filename"`
	OS           string          `json:"os"`
	Sha256       string          `json:"sha256"`
	Size         int64           `json:"size"`
	Type         ReleaseFileType `json:"type"`
}
