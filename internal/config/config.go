package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/eekfonky/healthcore/internal/health"
	"github.com/eekfonky/healthcore/internal/logger"
	"github.com/eekfonky/healthcore/internal/memmon"
	"github.com/eekfonky/healthcore/internal/procman"
	"github.com/eekfonky/healthcore/internal/sysmon"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Log     logger.Config           `toml:"log" mapstructure:"log"`
	Memory  memmon.Config           `toml:"memory" mapstructure:"memory"`
	System  sysmon.Config           `toml:"system" mapstructure:"system"`
	Process procman.Config          `toml:"process" mapstructure:"process"`
	Health  health.Config           `toml:"health" mapstructure:"health"`
	Breaker map[string]BreakerEntry `toml:"breaker" mapstructure:"breaker"`
	Server  ServerConfig            `toml:"server" mapstructure:"server"`
	History HistoryConfig           `toml:"history" mapstructure:"history"`
}

// BreakerEntry overrides a named dependency's breaker tuning.
type BreakerEntry struct {
	FailureThreshold int           `toml:"failure_threshold" mapstructure:"failure_threshold"`
	Cooldown         time.Duration `toml:"cooldown" mapstructure:"cooldown"`
	HalfOpenTrials   int           `toml:"half_open_trials" mapstructure:"half_open_trials"`
}

// ServerConfig describes the two HTTP listeners: the operator API and the
// metrics endpoint.
type ServerConfig struct {
	APIListen     string `toml:"api_listen" mapstructure:"api_listen"`
	MetricsListen string `toml:"metrics_listen" mapstructure:"metrics_listen"`
}

// HistoryConfig enables alert persistence when a DSN is set.
type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// Defaults for the listeners when the file omits them.
const (
	DefaultAPIListen     = "127.0.0.1:8745"
	DefaultMetricsListen = "127.0.0.1:9745"
)

// Load reads a TOML config file. A missing path yields the zero FileConfig
// with listener defaults applied, so the daemon runs without any file.
func Load(path string) (FileConfig, error) {
	var fc FileConfig
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fc, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(&fc); err != nil {
			return fc, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if fc.Server.APIListen == "" {
		fc.Server.APIListen = DefaultAPIListen
	}
	if fc.Server.MetricsListen == "" {
		fc.Server.MetricsListen = DefaultMetricsListen
	}
	return fc, nil
}
