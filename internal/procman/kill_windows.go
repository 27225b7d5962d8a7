//go:build windows

package procman

import (
	"os"
	"os/exec"
	"syscall"
)

func sysProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// killGroup terminates the process; Windows has no signal semantics.
func killGroup(pid int, _ syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func parseSignal(string) syscall.Signal { return syscall.SIGKILL }

func signalName(syscall.Signal) string { return "SIGKILL" }
