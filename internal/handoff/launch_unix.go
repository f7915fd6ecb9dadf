//go:build !windows

package handoff

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/quotedesk/selfupdate/internal/install"
)

// launchScript starts the install script in its own session so it survives
// the host process exiting.
func launchScript(plan *install.Plan) (int, error) {
	// Flush all writes so the staged tree and the script are on disk before
	// the host gets torn down.
	unix.Sync()

	cmd := exec.Command("/bin/sh", plan.ScriptPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	err := cmd.Start()
	if err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid

	err = cmd.Process.Release()
	if err != nil {
		return 0, err
	}

	return pid, nil
}
