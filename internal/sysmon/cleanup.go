package sysmon

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ForceCleanup removes stale files from the configured temp directories and
// attempts to reap zombie children. Failures are logged, never propagated.
// Returns the number of files removed.
func (m *Monitor) ForceCleanup() int {
	removed := m.cleanTempDirs()
	reaped := reapZombies()
	slog.Info("forced system cleanup", "removed_files", removed, "reaped", reaped)
	return removed
}

func (m *Monitor) cleanTempDirs() int {
	m.mu.Lock()
	dirs := append([]string(nil), m.cfg.TempDirs...)
	maxAge := m.cfg.TempMaxAge
	now := m.now()
	m.mu.Unlock()

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			slog.Debug("temp dir unreadable", "dir", dir, "error", err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !staleName(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				slog.Debug("stale temp file not removed", "path", path, "error", err)
				continue
			}
			removed++
		}
	}
	return removed
}

// staleName limits cleanup to obviously temporary artifacts so a
// misconfigured dir cannot lose real data.
func staleName(name string) bool {
	if strings.HasPrefix(name, "tmp") || strings.HasPrefix(name, ".tmp") {
		return true
	}
	switch filepath.Ext(name) {
	case ".tmp", ".temp", ".swp", ".bak":
		return true
	}
	return false
}
