//go:build windows

package handoff

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/quotedesk/selfupdate/internal/install"
)

// launchScript starts the install script detached from the host's console
// and process group so it survives the host process exiting.
func launchScript(plan *install.Plan) (int, error) {
	cmd := exec.Command("cmd.exe", "/C", plan.ScriptPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
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
