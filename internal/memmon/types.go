package memmon

import "time"

// Level classifies memory pressure.
type Level string

const (
	LevelHealthy   Level = "healthy"
	LevelWarning   Level = "warning"
	LevelCritical  Level = "critical"
	LevelEmergency Level = "emergency"
)

func worse(a, b Level) Level {
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func rank(l Level) int {
	switch l {
	case LevelEmergency:
		return 3
	case LevelCritical:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// SystemMemory is the machine-wide view inside a snapshot.
type SystemMemory struct {
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Total   uint64  `json:"total"`
	Percent float64 `json:"percent"`
}

// HeapMemory is the managed-heap view inside a snapshot.
type HeapMemory struct {
	Used    uint64  `json:"used"`
	Total   uint64  `json:"total"`
	Percent float64 `json:"percent"`
}

// GCStats carries cumulative garbage collection bookkeeping.
type GCStats struct {
	LastRun   time.Time `json:"last_run"`
	Runs      uint32    `json:"runs"`
	Reclaimed uint64    `json:"reclaimed_bytes"`
}

// Snapshot is one immutable memory sample. Snapshots are appended to a
// bounded ring history, oldest evicted first.
type Snapshot struct {
	Timestamp time.Time    `json:"timestamp"`
	System    SystemMemory `json:"system"`
	Heap      HeapMemory   `json:"heap"`
	RSS       uint64       `json:"rss"`
	GC        GCStats      `json:"gc"`
}

// Config tunes the monitor. Zero values fall back to defaults.
type Config struct {
	Interval    time.Duration `mapstructure:"interval"`
	HistorySize int           `mapstructure:"history_size"`

	SystemWarning   float64 `mapstructure:"system_warning"`
	SystemCritical  float64 `mapstructure:"system_critical"`
	SystemEmergency float64 `mapstructure:"system_emergency"`
	HeapWarning     float64 `mapstructure:"heap_warning"`
	HeapCritical    float64 `mapstructure:"heap_critical"`
	HeapEmergency   float64 `mapstructure:"heap_emergency"`

	LeakWindow         int     `mapstructure:"leak_window"`
	LeakIncreasingRate float64 `mapstructure:"leak_increasing_rate"` // MB/min
	LeakDecreasingRate float64 `mapstructure:"leak_decreasing_rate"` // MB/min
	LeakSuspectRate    float64 `mapstructure:"leak_suspect_rate"`    // MB/min

	GCWarnInterval     time.Duration `mapstructure:"gc_warn_interval"`
	GCCriticalCooldown time.Duration `mapstructure:"gc_critical_cooldown"`
	GCHourlyCap        int           `mapstructure:"gc_hourly_cap"`
	EmergencyGuard     time.Duration `mapstructure:"emergency_guard"`
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 288
	}
	if c.SystemWarning <= 0 {
		c.SystemWarning = 70
	}
	if c.SystemCritical <= 0 {
		c.SystemCritical = 85
	}
	if c.SystemEmergency <= 0 {
		c.SystemEmergency = 95
	}
	if c.HeapWarning <= 0 {
		c.HeapWarning = 80
	}
	if c.HeapCritical <= 0 {
		c.HeapCritical = 90
	}
	if c.HeapEmergency <= 0 {
		c.HeapEmergency = 95
	}
	if c.LeakWindow <= 0 {
		c.LeakWindow = 10
	}
	if c.LeakIncreasingRate == 0 {
		c.LeakIncreasingRate = 5
	}
	if c.LeakDecreasingRate == 0 {
		c.LeakDecreasingRate = -2
	}
	if c.LeakSuspectRate == 0 {
		c.LeakSuspectRate = 10
	}
	if c.GCWarnInterval <= 0 {
		c.GCWarnInterval = 60 * time.Second
	}
	if c.GCCriticalCooldown <= 0 {
		c.GCCriticalCooldown = 5 * time.Second
	}
	if c.GCHourlyCap <= 0 {
		c.GCHourlyCap = 12
	}
	if c.EmergencyGuard <= 0 {
		c.EmergencyGuard = 30 * time.Second
	}
	return c
}

// LeakReport is the outcome of trend analysis over the sample window.
type LeakReport struct {
	Suspected  bool    `json:"suspected"`
	Trend      string  `json:"trend"` // increasing | decreasing | stable
	RateMBMin  float64 `json:"rate_mb_per_min"`
	Confidence float64 `json:"confidence"`
	Samples    int     `json:"samples"`
}

// Status is the monitor's point-in-time report for the aggregator.
type Status struct {
	Level       Level      `json:"level"`
	Last        *Snapshot  `json:"last,omitempty"`
	Leak        LeakReport `json:"leak"`
	ManualGCs   int        `json:"manual_gc_runs"`
	Emergencies int        `json:"emergency_cleanups"`
}
