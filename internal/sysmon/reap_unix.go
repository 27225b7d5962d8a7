//go:build !windows

package sysmon

import (
	"errors"
	"log/slog"
	"syscall"
)

// reapZombies collects exit statuses of any already-terminated children so
// they leave the process table. Non-blocking; returns the number reaped.
func reapZombies() int {
	reaped := 0
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil {
			if !errors.Is(err, syscall.ECHILD) {
				slog.Debug("zombie reap failed", "error", err)
			}
			return reaped
		}
		if pid <= 0 {
			return reaped
		}
		reaped++
	}
}
