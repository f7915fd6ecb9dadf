// Package install prepares the handoff plan and the platform script that
// swaps a staged application tree into place once the host process exits.
package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/quotedesk/selfupdate/internal/staging"
)

// timestampFormat stamps backup and script names.
const timestampFormat = "20060102T150405"

// DefaultWaitTimeout bounds how long the script waits for the host process to
// exit before force-killing it.
const DefaultWaitTimeout = 30 * time.Second

// DefaultPreservePaths lists the user data entries carried forward from the
// old tree across an update.
var DefaultPreservePaths = []string{".quotedesk", "logs", "cache"}

// ErrBadPlan is returned when a plan fails validation.
var ErrBadPlan = errors.New("invalid install plan")

// Plan holds everything the install script needs, resolved up front.
// Preparing a plan has no side effects; only the script acts on it.
type Plan struct {
	// Version being installed.
	Version string

	// TargetRoot is the live installation directory.
	TargetRoot string

	// SourceRoot is the extracted new tree inside the staging directory.
	SourceRoot string

	// StagingDir is deleted by the script after a successful swap.
	StagingDir string

	// BackupRoot is the timestamped sibling directory the old tree is renamed to.
	BackupRoot string

	// ScriptPath is where the handoff script gets written, next to the target
	// so it never blocks the rename and never deletes itself early.
	ScriptPath string

	// HostPID is the process the script waits on before touching anything.
	HostPID int

	// RestartExec is launched once the swap succeeded.
	RestartExec string

	// PreservePaths are entries renamed forward from the backup into the new
	// tree so user data survives whole-tree renames.
	PreservePaths []string

	// FailureMarkerPath is written by the script when the swap fails and
	// picked up by recovery on the next launch.
	FailureMarkerPath string

	// AppliedMarkerPath is written into the new tree after a successful swap.
	AppliedMarkerPath string

	// WaitTimeout bounds the wait for the host process to exit.
	WaitTimeout time.Duration

	// Platform selects the script dialect, "windows" or POSIX sh.
	Platform string
}

// NewPlan prepares an install plan for a staged package.
func NewPlan(staged *staging.StagedPackage, targetRoot string, hostPID int, restartExec string) (*Plan, error) {
	targetRoot = filepath.Clean(targetRoot)
	stamp := time.Now().Format(timestampFormat)

	plan := &Plan{
		Version:           staged.Version,
		TargetRoot:        targetRoot,
		SourceRoot:        staged.SourceRoot,
		StagingDir:        staged.StagingDir,
		BackupRoot:        targetRoot + ".backup-" + stamp,
		ScriptPath:        targetRoot + ".update-" + stamp + scriptExtension(runtime.GOOS),
		HostPID:           hostPID,
		RestartExec:       restartExec,
		PreservePaths:     append([]string(nil), DefaultPreservePaths...),
		FailureMarkerPath: targetRoot + ".update-failed.txt",
		AppliedMarkerPath: filepath.Join(targetRoot, ".quotedesk", "update-applied.txt"),
		WaitTimeout:       DefaultWaitTimeout,
		Platform:          runtime.GOOS,
	}

	err := plan.Validate()
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// Validate performs sanity checks before anything irreversible happens.
func (p *Plan) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("%w: missing version", ErrBadPlan)
	}

	// The version gets embedded in the generated script and has to stay
	// inert in both dialects.
	if strings.ContainsAny(p.Version, "'\"`$\\\n\r") {
		return fmt.Errorf("%w: version %q contains script metacharacters", ErrBadPlan, p.Version)
	}

	if !filepath.IsAbs(p.TargetRoot) {
		return fmt.Errorf("%w: target root %q isn't absolute", ErrBadPlan, p.TargetRoot)
	}

	if p.HostPID <= 0 {
		return fmt.Errorf("%w: host pid %d", ErrBadPlan, p.HostPID)
	}

	if p.RestartExec == "" {
		return fmt.Errorf("%w: missing restart executable", ErrBadPlan)
	}

	if p.WaitTimeout <= 0 {
		return fmt.Errorf("%w: wait timeout %s", ErrBadPlan, p.WaitTimeout)
	}

	// The staged tree must exist and be swappable by rename, which means the
	// staging directory has to live next to the installation root.
	info, err := os.Stat(p.SourceRoot)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: staged tree %q isn't usable", ErrBadPlan, p.SourceRoot)
	}

	if filepath.Dir(p.StagingDir) != filepath.Dir(p.TargetRoot) {
		return fmt.Errorf("%w: staging %q doesn't live next to target %q", ErrBadPlan, p.StagingDir, p.TargetRoot)
	}

	// The backup sits next to the target, never below it.
	if filepath.Dir(p.BackupRoot) != filepath.Dir(p.TargetRoot) {
		return fmt.Errorf("%w: backup %q doesn't live next to target %q", ErrBadPlan, p.BackupRoot, p.TargetRoot)
	}

	for _, path := range []string{p.BackupRoot, p.ScriptPath} {
		if strings.HasPrefix(path, p.TargetRoot+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %q is inside the target root", ErrBadPlan, path)
		}
	}

	return nil
}

func scriptExtension(platform string) string {
	if platform == "windows" {
		return ".bat"
	}

	return ".sh"
}
