//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// killGroupOnCancel starts the command in its own process group and kills the
// whole group on cancellation, so children such as npm scripts die with it.
func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
