// Package recovery inspects the installation root for leftovers of an update
// attempt that never ran to completion, and offers ways out.
package recovery

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/lxc/incus/v6/shared/revert"

	"github.com/quotedesk/selfupdate/api"
)

// The scan side of the on-disk name grammar written by the install plan.
const (
	backupInfix       = ".backup-"
	stagingInfix      = ".staging-"
	scriptInfix       = ".update-"
	failureMarkerName = ".update-failed.txt"
	appliedMarkerName = "update-applied.txt"

	timestampFormat = "20060102T150405"
)

// ErrNoBackup is returned when a restore is requested without a usable backup.
var ErrNoBackup = errors.New("no backup available to restore")

// Scan walks the directory next to the installation root and reports every
// leftover a prior update attempt may have left behind.
func Scan(installRoot string) (*api.RecoveryReport, error) {
	installRoot = filepath.Clean(installRoot)
	base := filepath.Base(installRoot)

	entries, err := os.ReadDir(filepath.Dir(installRoot))
	if err != nil {
		return nil, fmt.Errorf("unable to scan for update leftovers: %w", err)
	}

	report := &api.RecoveryReport{}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, base+".") {
			continue
		}

		path := filepath.Join(filepath.Dir(installRoot), name)

		switch {
		case strings.HasPrefix(name, base+backupInfix) && entry.IsDir():
			report.Backups = append(report.Backups, api.RecoveryBackup{
				Path:      path,
				CreatedAt: backupTime(entry, strings.TrimPrefix(name, base+backupInfix)),
			})

		case strings.HasPrefix(name, base+stagingInfix) && entry.IsDir():
			report.StagingDirs = append(report.StagingDirs, path)

		case name == base+failureMarkerName:
			report.Failure = parseFailureMarker(path, entry)

		case strings.HasPrefix(name, base+scriptInfix) && isScriptName(name):
			report.Scripts = append(report.Scripts, path)
		}
	}

	// Newest backup first.
	slices.SortFunc(report.Backups, func(a, b api.RecoveryBackup) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	report.Applied = readAppliedMarker(filepath.Join(installRoot, ".quotedesk", appliedMarkerName))

	return report, nil
}

// Restore puts the newest backup back in place of the current installation.
// The displaced tree only gets deleted once the backup rename succeeded.
func Restore(installRoot string, report *api.RecoveryReport) error {
	if len(report.Backups) == 0 {
		return ErrNoBackup
	}

	backup := report.Backups[0]

	reverter := revert.New()
	defer reverter.Fail()

	displaced := installRoot + ".restore-" + time.Now().Format(timestampFormat)

	_, err := os.Stat(installRoot)
	if err == nil {
		err = os.Rename(installRoot, displaced)
		if err != nil {
			return fmt.Errorf("unable to move current installation aside: %w", err)
		}

		reverter.Add(func() {
			_ = os.Rename(displaced, installRoot)
		})
	}

	err = os.Rename(backup.Path, installRoot)
	if err != nil {
		return fmt.Errorf("unable to restore backup %q: %w", backup.Path, err)
	}

	reverter.Success()

	_ = os.RemoveAll(displaced)

	return nil
}

// CleanupTransient removes staging directories, leftover scripts and the
// failure marker. Backups stay untouched.
func CleanupTransient(report *api.RecoveryReport) error {
	for _, dir := range report.StagingDirs {
		err := os.RemoveAll(dir)
		if err != nil {
			return err
		}
	}

	for _, script := range report.Scripts {
		err := os.Remove(script)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	if report.Failure != nil {
		err := os.Remove(report.Failure.Path)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	report.StagingDirs = nil
	report.Scripts = nil
	report.Failure = nil

	return nil
}

// Discard removes every leftover including backups, accepting the currently
// installed tree as-is.
func Discard(report *api.RecoveryReport) error {
	err := CleanupTransient(report)
	if err != nil {
		return err
	}

	for _, backup := range report.Backups {
		err := os.RemoveAll(backup.Path)
		if err != nil {
			return err
		}
	}

	report.Backups = nil

	return nil
}

func backupTime(entry os.DirEntry, stamp string) time.Time {
	when, err := time.ParseInLocation(timestampFormat, stamp, time.Local)
	if err == nil {
		return when
	}

	info, err := entry.Info()
	if err == nil {
		return info.ModTime()
	}

	return time.Time{}
}

func isScriptName(name string) bool {
	return strings.HasSuffix(name, ".sh") || strings.HasSuffix(name, ".bat")
}

func parseFailureMarker(path string, entry os.DirEntry) *api.RecoveryFailure {
	failure := &api.RecoveryFailure{Path: path}

	info, err := entry.Info()
	if err == nil {
		failure.When = info.ModTime()
	}

	fd, err := os.Open(path)
	if err != nil {
		return failure
	}

	defer func() { _ = fd.Close() }()

	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), "=")
		if !found {
			continue
		}

		switch key {
		case "step":
			failure.Step = value
		case "detail":
			failure.Detail = value
		}
	}

	return failure
}

func readAppliedMarker(path string) *api.RecoveryApplied {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	applied := &api.RecoveryApplied{
		Path:    path,
		Version: strings.TrimSpace(string(body)),
	}

	info, err := os.Stat(path)
	if err == nil {
		applied.When = info.ModTime()
	}

	return applied
}
