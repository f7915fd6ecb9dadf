package recovery_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quotedesk/selfupdate/internal/recovery"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanCleanTree(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "quotedesk")
	require.NoError(t, os.MkdirAll(target, 0o755))

	report, err := recovery.Scan(target)
	require.NoError(t, err)
	require.False(t, report.Incomplete())
	require.Empty(t, report.Backups)
	require.Nil(t, report.Failure)
}

func TestScanLeftovers(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "quotedesk")
	require.NoError(t, os.MkdirAll(target, 0o755))

	// Two backups, one staging directory, one script and a failure marker.
	require.NoError(t, os.MkdirAll(target+".backup-20250101T020304", 0o755))
	require.NoError(t, os.MkdirAll(target+".backup-20250601T000000", 0o755))
	require.NoError(t, os.MkdirAll(target+".staging-abc123", 0o755))
	writeFile(t, target+".update-20250601T000000.sh", "#!/bin/sh\n")
	writeFile(t, target+".update-failed.txt", "step=swap\ndetail=cannot move tree\n")

	report, err := recovery.Scan(target)
	require.NoError(t, err)
	require.True(t, report.Incomplete())

	require.Len(t, report.Backups, 2)
	require.Equal(t, target+".backup-20250601T000000", report.Backups[0].Path)
	require.Equal(t, 2025, report.Backups[0].CreatedAt.Year())

	require.Equal(t, []string{target + ".staging-abc123"}, report.StagingDirs)
	require.Equal(t, []string{target + ".update-20250601T000000.sh"}, report.Scripts)

	require.NotNil(t, report.Failure)
	require.Equal(t, "swap", report.Failure.Step)
	require.Equal(t, "cannot move tree", report.Failure.Detail)
}

func TestScanAppliedMarker(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "quotedesk")
	writeFile(t, filepath.Join(target, ".quotedesk", "update-applied.txt"), "2.4.1\n")

	report, err := recovery.Scan(target)
	require.NoError(t, err)
	require.False(t, report.Incomplete())
	require.NotNil(t, report.Applied)
	require.Equal(t, "2.4.1", report.Applied.Version)
}

func TestScanIgnoresUnrelatedSiblings(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	target := filepath.Join(parent, "quotedesk")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "other-app.backup-x"), 0o755))
	writeFile(t, filepath.Join(parent, "quotedesk.txt"), "not a leftover")

	report, err := recovery.Scan(target)
	require.NoError(t, err)
	require.False(t, report.Incomplete())
}

func TestRestore(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "quotedesk")
	writeFile(t, filepath.Join(target, "data.txt"), "broken")

	backup := target + ".backup-20250601T000000"
	writeFile(t, filepath.Join(backup, "data.txt"), "good")

	report, err := recovery.Scan(target)
	require.NoError(t, err)

	require.NoError(t, recovery.Restore(target, report))

	data, err := os.ReadFile(filepath.Join(target, "data.txt"))
	require.NoError(t, err)
	require.Equal(t, "good", string(data))

	// The backup moved back into place and the broken tree is gone.
	_, err = os.Stat(backup)
	require.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	for _, entry := range entries {
		require.NotContains(t, entry.Name(), ".restore-")
	}
}

func TestRestoreWithoutBackup(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "quotedesk")
	require.NoError(t, os.MkdirAll(target, 0o755))

	report, err := recovery.Scan(target)
	require.NoError(t, err)

	require.ErrorIs(t, recovery.Restore(target, report), recovery.ErrNoBackup)
}

func TestCleanupTransientKeepsBackups(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "quotedesk")
	require.NoError(t, os.MkdirAll(target, 0o755))

	backup := target + ".backup-20250601T000000"
	require.NoError(t, os.MkdirAll(backup, 0o755))
	require.NoError(t, os.MkdirAll(target+".staging-abc", 0o755))
	writeFile(t, target+".update-20250601T000000.sh", "#!/bin/sh\n")
	writeFile(t, target+".update-failed.txt", "step=swap\ndetail=x\n")

	report, err := recovery.Scan(target)
	require.NoError(t, err)

	require.NoError(t, recovery.CleanupTransient(report))

	// Only the backup survives.
	_, err = os.Stat(backup)
	require.NoError(t, err)

	for _, gone := range []string{target + ".staging-abc", target + ".update-20250601T000000.sh", target + ".update-failed.txt"} {
		_, err = os.Stat(gone)
		require.True(t, os.IsNotExist(err), gone)
	}

	require.True(t, report.Incomplete())
	require.Empty(t, report.StagingDirs)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "quotedesk")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.MkdirAll(target+".backup-20250601T000000", 0o755))
	require.NoError(t, os.MkdirAll(target+".staging-abc", 0o755))

	report, err := recovery.Scan(target)
	require.NoError(t, err)

	require.NoError(t, recovery.Discard(report))
	require.False(t, report.Incomplete())

	rescan, err := recovery.Scan(target)
	require.NoError(t, err)
	require.False(t, rescan.Incomplete())
}
