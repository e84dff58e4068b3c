//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

func setDaemonSysProcAttr(cmd *exec.Cmd) {}

// processExists relies on FindProcess opening a handle, which fails for dead pids on Windows.
func processExists(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

// signalTerm kills outright; Windows has no SIGTERM for console-less children.
func signalTerm(proc *os.Process) error {
	return proc.Kill()
}
