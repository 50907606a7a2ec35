//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// setProcAttr starts the child in its own process group so a terminal's
// SIGINT reaches protoreg only, which then kills the tree itself.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
