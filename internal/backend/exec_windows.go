//go:build windows

package backend

import (
	"os/exec"
	"syscall"
)

// setProcessGroup creates the agent in a new process group so it can be
// terminated as a unit on abort.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessGroup force-terminates the agent process. Windows has no
// direct group-kill; killing the root process is the best available.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
