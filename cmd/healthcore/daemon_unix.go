//go:build !windows

package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// daemonize re-executes the current command detached in a new session. The
// child sees Getppid()==1 after the parent exits and skips this path.
func daemonize(pidFile, logFile string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	var args []string
	skip := false
	for _, a := range os.Args[1:] {
		if skip {
			skip = false
			continue
		}
		switch a {
		case "--daemonize":
			continue
		case "--pidfile", "--logfile":
			skip = true
			continue
		}
		args = append(args, a)
	}
	if pidFile != "" {
		args = append(args, "--pidfile", pidFile)
	}
	if logFile != "" {
		args = append(args, "--logfile", logFile)
	}

	// #nosec G204 -- re-exec of our own binary with filtered args
	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil

	if logFile != "" {
		// #nosec G304 -- operator-provided log path
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
	} else {
		devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		cmd.Stdout = devnull
		cmd.Stderr = devnull
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	fmt.Println("healthcore daemon started, pid", cmd.Process.Pid)
	return nil
}
