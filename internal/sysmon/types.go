package sysmon

import "time"

// Level classifies system pressure. Shares the ordering used by memmon.
type Level string

const (
	LevelHealthy  Level = "healthy"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

func worse(a, b Level) Level {
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func rank(l Level) int {
	switch l {
	case LevelCritical:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// CPUInfo is the CPU view inside a snapshot.
type CPUInfo struct {
	UsagePercent float64 `json:"usage_percent"`
	Cores        int     `json:"cores"`
	Load1        float64 `json:"load1"`
	Load5        float64 `json:"load5"`
	Load15       float64 `json:"load15"`
	LoadRatio    float64 `json:"load_ratio"`
}

// ProcessInfo is the machine process census inside a snapshot.
type ProcessInfo struct {
	Total    int `json:"total"`
	Running  int `json:"running"`
	Sleeping int `json:"sleeping"`
	Zombie   int `json:"zombie"`
}

// DiskInfo is the disk usage view inside a snapshot.
type DiskInfo struct {
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Total   uint64  `json:"total"`
	Percent float64 `json:"percent"`
}

// Snapshot is one immutable system sample, appended to a bounded ring.
type Snapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	CPU       CPUInfo       `json:"cpu"`
	Processes ProcessInfo   `json:"processes"`
	Disk      DiskInfo      `json:"disk"`
	Uptime    time.Duration `json:"uptime"`
}

// Config tunes the monitor. Zero values fall back to defaults.
type Config struct {
	Interval    time.Duration `mapstructure:"interval"`
	HistorySize int           `mapstructure:"history_size"`
	DiskPath    string        `mapstructure:"disk_path"`

	CPUWarning        float64 `mapstructure:"cpu_warning"`
	CPUCritical       float64 `mapstructure:"cpu_critical"`
	LoadRatioWarning  float64 `mapstructure:"load_ratio_warning"`
	LoadRatioCritical float64 `mapstructure:"load_ratio_critical"`
	ProcessWarning    int     `mapstructure:"process_warning"`
	ProcessCritical   int     `mapstructure:"process_critical"`
	DiskWarning       float64 `mapstructure:"disk_warning"`
	DiskCritical      float64 `mapstructure:"disk_critical"`

	TempDirs   []string      `mapstructure:"temp_dirs"`
	TempMaxAge time.Duration `mapstructure:"temp_max_age"`
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 120
	}
	if c.DiskPath == "" {
		c.DiskPath = "/"
	}
	if c.CPUWarning <= 0 {
		c.CPUWarning = 80
	}
	if c.CPUCritical <= 0 {
		c.CPUCritical = 95
	}
	if c.LoadRatioWarning <= 0 {
		c.LoadRatioWarning = 1.5
	}
	if c.LoadRatioCritical <= 0 {
		c.LoadRatioCritical = 2.0
	}
	if c.ProcessWarning <= 0 {
		c.ProcessWarning = 800
	}
	if c.ProcessCritical <= 0 {
		c.ProcessCritical = 1000
	}
	if c.DiskWarning <= 0 {
		c.DiskWarning = 80
	}
	if c.DiskCritical <= 0 {
		c.DiskCritical = 90
	}
	if c.TempMaxAge <= 0 {
		c.TempMaxAge = 24 * time.Hour
	}
	return c
}

// Status is the monitor's point-in-time report for the aggregator.
type Status struct {
	Level Level     `json:"level"`
	Last  *Snapshot `json:"last,omitempty"`
}
