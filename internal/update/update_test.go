package update_test

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotedesk/selfupdate/api"
	"github.com/quotedesk/selfupdate/internal/providers"
	"github.com/quotedesk/selfupdate/internal/staging"
	"github.com/quotedesk/selfupdate/internal/state"
	"github.com/quotedesk/selfupdate/internal/update"
)

type fakeLocator struct {
	release *api.ReleaseDescriptor
	err     error
	gate    chan struct{}
}

func (l *fakeLocator) Latest(ctx context.Context) (*api.ReleaseDescriptor, error) {
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if l.err != nil {
		return nil, l.err
	}

	return l.release, nil
}

type fakeHost struct {
	version    string
	root       string
	restart    string
	pid        int
	shutdown   chan struct{}
	onShutdown func()
	once       sync.Once
}

func (h *fakeHost) CurrentVersion() string    { return h.version }
func (h *fakeHost) InstallRoot() string       { return h.root }
func (h *fakeHost) RestartExecutable() string { return h.restart }
func (h *fakeHost) ProcessID() int            { return h.pid }

func (h *fakeHost) RequestShutdown() {
	h.once.Do(func() {
		if h.onShutdown != nil {
			h.onShutdown()
		}

		close(h.shutdown)
	})
}

type eventLog struct {
	mu     sync.Mutex
	events []api.UpdateEvent
}

func (l *eventLog) add(event api.UpdateEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
}

// sequence returns the ordered statuses with consecutive repeats collapsed.
func (l *eventLog) sequence() []api.UpdateStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []api.UpdateStatus

	for _, event := range l.events {
		if len(out) == 0 || out[len(out)-1] != event.Status {
			out = append(out, event.Status)
		}
	}

	return out
}

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	for name, content := range files {
		fd, err := zw.Create(name)
		require.NoError(t, err)

		_, err = fd.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

func deadPID(t *testing.T) int {
	t.Helper()

	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())

	return cmd.Process.Pid
}

type rig struct {
	parent    string
	host      *fakeHost
	locator   *fakeLocator
	ctrl      *update.Controller
	events    *eventLog
	state     *state.State
	statePath string
}

func newRig(t *testing.T) *rig {
	t.Helper()

	parent := t.TempDir()

	root := filepath.Join(parent, "quotedesk")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.txt"), []byte("old"), 0o644))

	restart := filepath.Join(parent, "restart.sh")
	require.NoError(t, os.WriteFile(restart, []byte("#!/bin/sh\n"), 0o755))

	zipBytes := makeZip(t, map[string]string{
		"quotedesk-2.5.0/data.txt": "new",
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(zipBytes)
	}))
	t.Cleanup(server.Close)

	statePath := filepath.Join(parent, "state.json")
	st, err := state.LoadOrCreate(statePath)
	require.NoError(t, err)

	host := &fakeHost{
		version:  "2.4.0",
		root:     root,
		restart:  restart,
		pid:      deadPID(t),
		shutdown: make(chan struct{}),
	}

	locator := &fakeLocator{
		release: &api.ReleaseDescriptor{
			Version:        "2.5.0",
			DisplayVersion: "2.5.0",
			Channel:        "stable",
			Filename:       "pkg.zip",
			URL:            server.URL + "/pkg.zip",
			Sha256:         digestOf(zipBytes),
			Size:           int64(len(zipBytes)),
		},
	}

	events := &eventLog{}

	return &rig{
		parent:    parent,
		host:      host,
		locator:   locator,
		ctrl:      update.New(host, locator, st, events.add),
		events:    events,
		state:     st,
		statePath: statePath,
	}
}

func (r *rig) stagingLeftovers(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(r.parent)
	require.NoError(t, err)

	var found []string

	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".staging-") {
			found = append(found, entry.Name())
		}
	}

	return found
}

func TestCheck(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	release, err := rig.ctrl.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2.5.0", release.DisplayVersion)
	require.Equal(t, api.UpdateStatusAvailable, rig.ctrl.Status())
	require.Equal(t, []api.UpdateStatus{api.UpdateStatusChecking, api.UpdateStatusAvailable}, rig.events.sequence())

	// The check got persisted.
	st, err := state.LoadOrCreate(rig.statePath)
	require.NoError(t, err)
	require.Equal(t, api.UpdateStatusAvailable, st.Update.State.Status)
	require.Equal(t, "2.5.0", st.Update.State.PendingVersion)
	require.False(t, st.Update.State.LastCheck.IsZero())
}

func TestCheckUpToDate(t *testing.T) {
	t.Parallel()

	rig := newRig(t)
	rig.host.version = "2.5.0"

	_, err := rig.ctrl.Check(context.Background())
	require.ErrorIs(t, err, providers.ErrNoUpdateAvailable)
	require.Equal(t, api.UpdateStatusIdle, rig.ctrl.Status())
}

func TestCheckSuffixDoesNotWin(t *testing.T) {
	t.Parallel()

	rig := newRig(t)
	rig.host.version = "2.5.0"
	rig.locator.release.Version = "2.5.0"
	rig.locator.release.DisplayVersion = "2.5.0-hotfix"

	// Ordering ignores the suffix, so 2.5.0-hotfix doesn't beat 2.5.0.
	_, err := rig.ctrl.Check(context.Background())
	require.ErrorIs(t, err, providers.ErrNoUpdateAvailable)
}

func TestCheckLocatorFailure(t *testing.T) {
	t.Parallel()

	rig := newRig(t)
	rig.locator.err = providers.ErrProviderUnavailable

	_, err := rig.ctrl.Check(context.Background())
	require.ErrorIs(t, err, providers.ErrProviderUnavailable)
	require.Equal(t, api.UpdateStatusFailed, rig.ctrl.Status())

	st, err := state.LoadOrCreate(rig.statePath)
	require.NoError(t, err)
	require.NotEmpty(t, st.Update.State.LastFailure)
}

func TestRunFullSequence(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	// The terminal state must be on disk before the host is told to exit.
	rig.host.onShutdown = func() {
		st, err := state.LoadOrCreate(rig.statePath)
		if err == nil {
			require.Equal(t, api.UpdateStatusHandedOff, st.Update.State.Status)
		}
	}

	require.NoError(t, rig.ctrl.Run(context.Background()))

	require.Equal(t, []api.UpdateStatus{
		api.UpdateStatusChecking,
		api.UpdateStatusAvailable,
		api.UpdateStatusDownloading,
		api.UpdateStatusVerifying,
		api.UpdateStatusStaged,
		api.UpdateStatusCommitting,
		api.UpdateStatusHandedOff,
	}, rig.events.sequence())

	select {
	case <-rig.host.shutdown:
	default:
		t.Fatal("host was never asked to shut down")
	}

	// The detached script eventually swaps the tree in.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(rig.host.root, "data.txt"))

		return err == nil && string(data) == "new"
	}, 10*time.Second, 100*time.Millisecond)
}

func TestRunNoUpdate(t *testing.T) {
	t.Parallel()

	rig := newRig(t)
	rig.host.version = "9.0.0"

	err := rig.ctrl.Run(context.Background())
	require.ErrorIs(t, err, providers.ErrNoUpdateAvailable)
	require.Equal(t, api.UpdateStatusIdle, rig.ctrl.Status())

	select {
	case <-rig.host.shutdown:
		t.Fatal("host must keep running when there is nothing to update")
	default:
	}
}

func TestRunIntegrityFailure(t *testing.T) {
	t.Parallel()

	rig := newRig(t)
	rig.locator.release.Sha256 = digestOf([]byte("something else"))

	err := rig.ctrl.Run(context.Background())
	require.ErrorIs(t, err, staging.ErrIntegrity)
	require.Equal(t, api.UpdateStatusFailed, rig.ctrl.Status())

	// Partial artifacts were removed before the failure was reported.
	require.Empty(t, rig.stagingLeftovers(t))

	st, err := state.LoadOrCreate(rig.statePath)
	require.NoError(t, err)
	require.Equal(t, api.UpdateStatusFailed, st.Update.State.Status)
	require.Contains(t, st.Update.State.LastFailure, "checksum")

	select {
	case <-rig.host.shutdown:
		t.Fatal("host must keep running after a failed attempt")
	default:
	}
}

func TestBeginConcurrent(t *testing.T) {
	t.Parallel()

	rig := newRig(t)
	rig.locator.gate = make(chan struct{})

	require.NoError(t, rig.ctrl.Begin(context.Background()))

	// A second attempt while the first is still checking is refused.
	require.ErrorIs(t, rig.ctrl.Begin(context.Background()), update.ErrUpdateInProgress)
	require.ErrorIs(t, rig.ctrl.Run(context.Background()), update.ErrUpdateInProgress)

	require.Eventually(t, func() bool {
		return rig.ctrl.Status() == api.UpdateStatusChecking
	}, 3*time.Second, 10*time.Millisecond)

	rig.ctrl.Cancel()

	require.Eventually(t, func() bool {
		sequence := rig.events.sequence()

		return len(sequence) > 0 && sequence[len(sequence)-1] == api.UpdateStatusIdle
	}, 3*time.Second, 10*time.Millisecond)
}

func TestBeginRecoveryGate(t *testing.T) {
	t.Parallel()

	rig := newRig(t)
	require.NoError(t, os.MkdirAll(rig.host.root+".backup-20250101T000000", 0o755))

	require.ErrorIs(t, rig.ctrl.Begin(context.Background()), update.ErrRecoveryPending)
	require.ErrorIs(t, rig.ctrl.Run(context.Background()), update.ErrRecoveryPending)

	// Plain checks are still allowed with leftovers present.
	release, err := rig.ctrl.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2.5.0", release.DisplayVersion)
}

func TestCancelDuringDownload(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	reqStarted := make(chan struct{})

	var once sync.Once

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			return
		}

		chunk := bytes.Repeat([]byte("x"), 1024)

		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}

			_, err := w.Write(chunk)
			if err != nil {
				return
			}

			flusher.Flush()
			once.Do(func() { close(reqStarted) })
			time.Sleep(10 * time.Millisecond)
		}
	}))
	t.Cleanup(slow.Close)

	rig.locator.release.URL = slow.URL + "/pkg.zip"
	rig.locator.release.Sha256 = ""
	rig.locator.release.Size = 64 * 1024 * 1024

	go func() {
		<-reqStarted
		rig.ctrl.Cancel()
	}()

	err := rig.ctrl.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, api.UpdateStatusIdle, rig.ctrl.Status())

	// The cancelled download left nothing behind.
	require.Empty(t, rig.stagingLeftovers(t))

	found := false

	rig.events.mu.Lock()
	for _, event := range rig.events.events {
		if event.Message == "update cancelled" {
			found = true
		}
	}
	rig.events.mu.Unlock()

	require.True(t, found)
}
