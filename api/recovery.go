package api

import (
	"time"
)

// RecoveryReport holds everything found next to the installation root that a
// prior update attempt left behind.
type RecoveryReport struct {
	Backups     []RecoveryBackup `json:"backups,omitempty"      yaml:"backups,omitempty"`
	StagingDirs []string         `json:"staging_dirs,omitempty" yaml:"staging_dirs,omitempty"`
	Scripts     []string         `json:"scripts,omitempty"      yaml:"scripts,omitempty"`

	Failure *RecoveryFailure `json:"failure,omitempty" yaml:"failure,omitempty"`
	Applied *RecoveryApplied `json:"applied,omitempty" yaml:"applied,omitempty"`
}

// RecoveryBackup describes one leftover backup directory.
type RecoveryBackup struct {
	Path      string    `json:"path"       yaml:"path"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// RecoveryFailure describes the failure marker written by the install script.
type RecoveryFailure struct {
	Path   string    `json:"path"   yaml:"path"`
	Step   string    `json:"step"   yaml:"step"`
	Detail string    `json:"detail" yaml:"detail"`
	When   time.Time `json:"when"   yaml:"when"`
}

// RecoveryApplied describes the applied marker written after a successful swap.
type RecoveryApplied struct {
	Path    string    `json:"path"    yaml:"path"`
	Version string    `json:"version" yaml:"version"`
	When    time.Time `json:"when"    yaml:"when"`
}

// Incomplete returns true when the report holds evidence of an update attempt
// that did not run to completion.
func (r *RecoveryReport) Incomplete() bool {
	return len(r.Backups) > 0 || len(r.StagingDirs) > 0 || len(r.Scripts) > 0 || r.Failure != nil
}
