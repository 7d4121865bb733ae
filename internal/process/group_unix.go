//go:build unix

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setGroupAttr makes the child the leader of a new process group so
// signals reach its descendants too.
func setGroupAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptGroup(pgid int) error {
	return unix.Kill(-pgid, unix.SIGINT)
}

func killGroup(pgid int) error {
	return unix.Kill(-pgid, unix.SIGKILL)
}
