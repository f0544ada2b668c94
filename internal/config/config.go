// Package config loads slotwise server settings from defaults, an optional
// YAML file and SLOTWISE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/me/slotwise/pkg/model"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// SLOTWISE_ENGINE_WORKERS.
const EnvPrefix = "SLOTWISE"

// ServerConfig holds configuration for the slotwise server.
type ServerConfig struct {
	Addr      string       `mapstructure:"addr"`       // Listen address (default ":8080")
	LogLevel  string       `mapstructure:"log_level"`  // debug, info, warn, error
	LogFormat string       `mapstructure:"log_format"` // text, json
	DBPath    string       `mapstructure:"db_path"`    // SQLite path, ":memory:" for testing
	Engine    EngineConfig `mapstructure:"engine"`
}

// EngineConfig holds engine construction settings and the defaults applied
// to requests that leave their options unset.
type EngineConfig struct {
	Workers                int    `mapstructure:"workers"` // 0 means one per CPU
	Seed                   uint64 `mapstructure:"seed"`    // 0 means a fresh seed per run
	DefaultAlgorithm       string `mapstructure:"default_algorithm"`
	MaxComputationTimeMs   int64  `mapstructure:"max_computation_time_ms"`
	OptimizationIterations int    `mapstructure:"optimization_iterations"`
	SlotGranularityMinutes int    `mapstructure:"slot_granularity_minutes"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		DBPath:    "slotwise.db",
		Engine: EngineConfig{
			DefaultAlgorithm:       string(model.AlgorithmGreedy),
			MaxComputationTimeMs:   model.DefaultMaxComputationTimeMs,
			OptimizationIterations: model.DefaultOptimizationIterations,
			SlotGranularityMinutes: model.DefaultSlotGranularityMinutes,
		},
	}
}

// Load reads the configuration. An empty path skips the file layer.
func Load(path string) (ServerConfig, error) {
	v := viper.New()
	setDefaults(v, DefaultServerConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return ServerConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d ServerConfig) {
	v.SetDefault("addr", d.Addr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("engine.seed", d.Engine.Seed)
	v.SetDefault("engine.default_algorithm", d.Engine.DefaultAlgorithm)
	v.SetDefault("engine.max_computation_time_ms", d.Engine.MaxComputationTimeMs)
	v.SetDefault("engine.optimization_iterations", d.Engine.OptimizationIterations)
	v.SetDefault("engine.slot_granularity_minutes", d.Engine.SlotGranularityMinutes)
}

// Validate reports settings the server cannot start with.
func (c ServerConfig) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if a := model.Algorithm(c.Engine.DefaultAlgorithm); a != "" && !a.IsValid() {
		errs = append(errs, fmt.Errorf("engine.default_algorithm %q is not a known algorithm", a))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, errors.New("engine.workers must not be negative"))
	}
	return errors.Join(errs...)
}

// ApplyDefaults fills the unset options of a request from the engine config.
// Values set on the request win.
func (c EngineConfig) ApplyDefaults(o model.Options) model.Options {
	if o.Algorithm == "" {
		o.Algorithm = model.Algorithm(c.DefaultAlgorithm)
	}
	if o.MaxComputationTimeMs <= 0 {
		o.MaxComputationTimeMs = c.MaxComputationTimeMs
	}
	if o.OptimizationIterations <= 0 {
		o.OptimizationIterations = c.OptimizationIterations
	}
	if o.SlotGranularityMinutes <= 0 {
		o.SlotGranularityMinutes = c.SlotGranularityMinutes
	}
	return o
}
