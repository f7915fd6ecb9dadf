// Package handoff writes the install script to disk and launches it in a
// detached process, the point of no return for an update.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lxc/incus/v6/shared/revert"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/quotedesk/selfupdate/internal/install"
)

// ErrHandoff is returned when the install script could not be written or
// launched. The host process must keep running in that case.
var ErrHandoff = errors.New("unable to hand off to the install script")

// Commit writes the plan's script next to the installation root, launches it
// detached and confirms it is running. The caller only shuts the host process
// down after Commit returns without error.
func Commit(ctx context.Context, plan *install.Plan) (int, error) {
	err := plan.Validate()
	if err != nil {
		return 0, err
	}

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	reverter := revert.New()
	defer reverter.Fail()

	reverter.Add(func() {
		_ = os.Remove(plan.ScriptPath)
	})

	err = writeScript(plan)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHandoff, err)
	}

	// Cancellation is honored up to here; once the script is launched the
	// update belongs to it.
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	pid, err := launchScript(plan)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHandoff, err)
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil || !alive {
		return 0, fmt.Errorf("%w: script process %d exited immediately", ErrHandoff, pid)
	}

	reverter.Success()

	slog.InfoContext(ctx, "Handed off to install script", "script", plan.ScriptPath, "pid", pid, "version", plan.Version)

	return pid, nil
}

func writeScript(plan *install.Plan) error {
	fd, err := os.OpenFile(plan.ScriptPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o700)
	if err != nil {
		return err
	}

	defer func() { _ = fd.Close() }()

	_, err = fd.WriteString(plan.Render())
	if err != nil {
		return err
	}

	// Flush to disk so the script survives the host exiting right after the
	// launch.
	return fd.Sync()
}
