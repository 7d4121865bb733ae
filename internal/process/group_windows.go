//go:build windows

package process

import (
	"os"
	"os/exec"
)

// Windows has no process groups in the POSIX sense; we fall back to
// terminating the direct child only.
func setGroupAttr(cmd *exec.Cmd) {}

func interruptGroup(pgid int) error {
	return killGroup(pgid)
}

func killGroup(pgid int) error {
	p, err := os.FindProcess(pgid)
	if err != nil {
		return err
	}
	return p.Kill()
}
