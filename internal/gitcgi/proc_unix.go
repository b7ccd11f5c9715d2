//go:build unix

package gitcgi

import (
	"os/exec"
	"syscall"
)

// setProcessGroup gives the child its own process group so a timeout kill
// reaches the pack helpers git http-backend spawns, not just the backend
// itself.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree signals the whole process group. When the group is
// already gone it falls back to the direct child.
func killProcessTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}
