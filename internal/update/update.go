// Package update drives an update attempt through its full lifecycle, from
// release check to the handoff that ends the running process.
package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quotedesk/selfupdate/api"
	"github.com/quotedesk/selfupdate/internal/handoff"
	"github.com/quotedesk/selfupdate/internal/install"
	"github.com/quotedesk/selfupdate/internal/providers"
	"github.com/quotedesk/selfupdate/internal/recovery"
	"github.com/quotedesk/selfupdate/internal/staging"
	"github.com/quotedesk/selfupdate/internal/state"
	"github.com/quotedesk/selfupdate/internal/version"
)

// Controller owns the update state machine. At most one attempt runs at any
// time; everything it learns is persisted through the injected state.
type Controller struct {
	host    Host
	locator Locator
	state   *state.State
	events  func(api.UpdateEvent)

	mu      sync.Mutex
	busy    bool
	phase   api.UpdateStatus
	cancel  context.CancelFunc
	release *api.ReleaseDescriptor
}

// New returns a controller for the given host. The events callback may be nil.
func New(host Host, locator Locator, st *state.State, events func(api.UpdateEvent)) *Controller {
	return &Controller{
		host:    host,
		locator: locator,
		state:   st,
		events:  events,
		phase:   api.UpdateStatusIdle,
	}
}

// Status returns the controller's current position in the update lifecycle.
func (c *Controller) Status() api.UpdateStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Check asks the release locator for the newest release on the configured
// channel and reports it if it is newer than what is currently running.
func (c *Controller) Check(ctx context.Context) (*api.ReleaseDescriptor, error) {
	err := c.beginAttempt(false)
	if err != nil {
		return nil, err
	}

	defer c.endAttempt()

	runCtx, cancel := context.WithCancel(ctx)
	c.storeCancel(cancel)

	defer cancel()

	release, err := c.check(runCtx)
	if err != nil {
		return nil, c.conclude(runCtx, err, "")
	}

	return release, nil
}

// Run performs a full update attempt synchronously: check, download, verify,
// stage and hand off to the install script. On success the host has been
// asked to shut down by the time Run returns.
func (c *Controller) Run(ctx context.Context) error {
	err := c.beginAttempt(true)
	if err != nil {
		return err
	}

	return c.execute(ctx)
}

// Begin starts a full update attempt in the background. Progress is reported
// through the event callback. Starting a second attempt while one is running
// is refused.
func (c *Controller) Begin(ctx context.Context) error {
	err := c.beginAttempt(true)
	if err != nil {
		return err
	}

	go func() {
		_ = c.execute(ctx)
	}()

	return nil
}

// Cancel aborts the in-flight attempt. Once the install script has been
// handed off there is nothing left to cancel.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// beginAttempt claims the single attempt slot. With requireClean set it also
// refuses to start while leftovers of an unfinished update are present.
func (c *Controller) beginAttempt(requireClean bool) error {
	c.mu.Lock()

	if c.busy {
		c.mu.Unlock()

		return ErrUpdateInProgress
	}

	c.busy = true
	c.mu.Unlock()

	if requireClean {
		report, err := recovery.Scan(c.host.InstallRoot())
		if err == nil && report.Incomplete() {
			c.endAttempt()

			return ErrRecoveryPending
		}
	}

	return nil
}

func (c *Controller) endAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.busy = false
	c.cancel = nil
}

func (c *Controller) storeCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel = cancel
}

func (c *Controller) execute(ctx context.Context) error {
	defer c.endAttempt()

	runCtx, cancel := context.WithCancel(ctx)
	c.storeCancel(cancel)

	defer cancel()

	c.mu.Lock()
	release := c.release
	c.mu.Unlock()

	if release == nil {
		var err error

		release, err = c.check(runCtx)
		if err != nil {
			return c.conclude(runCtx, err, "")
		}
	}

	err := c.attempt(runCtx, release)
	if err != nil {
		return c.conclude(runCtx, err, release.DisplayVersion)
	}

	return nil
}

// check fetches the newest release and compares it against the running
// version. Ordering uses the numeric version core, so a suffixed build like
// "2.6.0-beta" never wins over plain "2.6.0".
func (c *Controller) check(ctx context.Context) (*api.ReleaseDescriptor, error) {
	c.setStatus(api.UpdateStatusChecking)
	c.emit(api.UpdateEvent{Status: api.UpdateStatusChecking})

	release, err := c.locator.Latest(ctx)

	c.state.Update.State.LastCheck = time.Now().UTC()

	if err != nil {
		return nil, err
	}

	current, parseErr := version.Parse(c.host.CurrentVersion())
	if parseErr != nil {
		// Unversioned development builds always get offered the update.
		current = version.Zero()
	}

	latest, err := version.Parse(release.Version)
	if err != nil {
		return nil, fmt.Errorf("release locator returned unusable version %q: %w", release.Version, err)
	}

	if !latest.NewerThan(current) {
		slog.InfoContext(ctx, "Already up to date", "current", c.host.CurrentVersion(), "latest", release.DisplayVersion)

		return nil, providers.ErrNoUpdateAvailable
	}

	c.mu.Lock()
	c.release = release
	c.mu.Unlock()

	c.state.Update.State.PendingVersion = release.DisplayVersion
	c.setStatus(api.UpdateStatusAvailable)
	c.emit(api.UpdateEvent{Status: api.UpdateStatusAvailable, Version: release.DisplayVersion, Changelog: release.Changelog})

	return release, nil
}

func (c *Controller) attempt(ctx context.Context, release *api.ReleaseDescriptor) error {
	c.state.Update.State.LastAttempt = time.Now().UTC()

	c.setStatus(api.UpdateStatusDownloading)
	c.emit(api.UpdateEvent{Status: api.UpdateStatusDownloading, Version: release.DisplayVersion, BytesTotal: release.Size})

	fetcher := staging.NewFetcher(c.host.InstallRoot(), func(done int64, total int64) {
		c.emit(api.UpdateEvent{Status: api.UpdateStatusDownloading, Version: release.DisplayVersion, BytesDone: done, BytesTotal: total})
	})

	fetcher.OnVerify(func() {
		c.setStatus(api.UpdateStatusVerifying)
		c.emit(api.UpdateEvent{Status: api.UpdateStatusVerifying, Version: release.DisplayVersion})
	})

	staged, err := fetcher.Fetch(ctx, release)
	if err != nil {
		return err
	}

	c.setStatus(api.UpdateStatusStaged)
	c.emit(api.UpdateEvent{Status: api.UpdateStatusStaged, Version: release.DisplayVersion})

	plan, err := install.NewPlan(staged, c.host.InstallRoot(), c.host.ProcessID(), c.host.RestartExecutable())
	if err != nil {
		_ = staged.Discard()

		return err
	}

	c.setStatus(api.UpdateStatusCommitting)
	c.emit(api.UpdateEvent{Status: api.UpdateStatusCommitting, Version: release.DisplayVersion})

	pid, err := handoff.Commit(ctx, plan)
	if err != nil {
		_ = staged.Discard()

		return err
	}

	// Persist the terminal state before asking the host to exit.
	c.state.Update.State.PendingVersion = release.DisplayVersion
	c.setStatus(api.UpdateStatusHandedOff)
	c.emit(api.UpdateEvent{Status: api.UpdateStatusHandedOff, Version: release.DisplayVersion, Message: fmt.Sprintf("install script running as PID %d", pid)})

	c.host.RequestShutdown()

	return nil
}

// conclude settles the state machine after a failed or fruitless attempt.
// Partial artifacts are already gone by the time this runs.
func (c *Controller) conclude(ctx context.Context, err error, displayVersion string) error {
	// The parked descriptor is only good for the attempt that just ended.
	// Dropping it forces the next attempt to go back to the locator.
	c.mu.Lock()
	c.release = nil
	c.mu.Unlock()

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		c.setStatus(api.UpdateStatusIdle)
		c.emit(api.UpdateEvent{Status: api.UpdateStatusIdle, Version: displayVersion, Message: "update cancelled"})

	case errors.Is(err, providers.ErrNoUpdateAvailable):
		c.setStatus(api.UpdateStatusIdle)
		c.emit(api.UpdateEvent{Status: api.UpdateStatusIdle, Message: "already up to date"})

	default:
		c.state.Update.State.LastFailure = err.Error()
		c.setStatus(api.UpdateStatusFailed)
		c.emit(api.UpdateEvent{Status: api.UpdateStatusFailed, Version: displayVersion, Reason: err.Error()})
	}

	return err
}

func (c *Controller) setStatus(status api.UpdateStatus) {
	c.mu.Lock()
	c.phase = status
	c.mu.Unlock()

	c.state.Update.State.Status = status

	err := c.state.Save()
	if err != nil {
		slog.Warn("Unable to persist updater state", "err", err)
	}
}

func (c *Controller) emit(event api.UpdateEvent) {
	if c.events != nil {
		c.events(event)
	}
}
