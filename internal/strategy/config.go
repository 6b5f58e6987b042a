package strategy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"futures-core/internal/risk"
)

// Config holds the strategy parameters, loadable from YAML.
type Config struct {
	Symbol          string `yaml:"symbol"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	FastPeriod      int    `yaml:"fast_period"`
	SlowPeriod      int    `yaml:"slow_period"`
	Quantity        int    `yaml:"quantity"`
	MaxBarHistory   int    `yaml:"max_bar_history"`

	Risk risk.Config `yaml:"risk"`

	SyncInterval         time.Duration `yaml:"sync_interval"`
	StatePersistInterval time.Duration `yaml:"state_persist_interval"`
	SnapshotMaxAge       time.Duration `yaml:"snapshot_max_age"`
}

// DefaultConfig returns the stock small-index-futures setup.
func DefaultConfig() Config {
	return Config{
		Symbol:               "MXFR1",
		IntervalMinutes:      3,
		FastPeriod:           5,
		SlowPeriod:           20,
		Quantity:             2,
		MaxBarHistory:        200,
		Risk:                 risk.DefaultConfig(),
		SyncInterval:         time.Minute,
		StatePersistInterval: 10 * time.Second,
		SnapshotMaxAge:       time.Hour,
	}
}

// LoadConfig reads a YAML strategy file, filling gaps from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read strategy config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse strategy config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("strategy config: symbol is required")
	}
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("strategy config: interval_minutes must be positive")
	}
	if c.FastPeriod <= 0 || c.SlowPeriod <= 0 || c.FastPeriod >= c.SlowPeriod {
		return fmt.Errorf("strategy config: need 0 < fast_period < slow_period")
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("strategy config: quantity must be positive")
	}
	return nil
}
