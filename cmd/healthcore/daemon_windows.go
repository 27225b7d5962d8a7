//go:build windows

package main

import "errors"

func daemonize(pidFile, logFile string) error {
	return errors.New("daemonize is not supported on windows")
}
