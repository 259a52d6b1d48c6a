//go:build unix

package peer

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in a new process group, out of reach of signals sent to
// the caller's foreground group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
