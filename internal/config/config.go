package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/fiscal.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"data/reports"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// PipelineConfig contains the cleaning and modelling parameters
type PipelineConfig struct {
	// AuthoritativeSources ranks sources for duplicate resolution; earlier
	// entries win when sources differ within a duplicate group.
	AuthoritativeSources []string `yaml:"authoritative_sources" envconfig:"AUTHORITATIVE_SOURCES" default:"IMF,World Bank,Central Bank"`

	// DuplicateTolerance is the relative spread below which same-source
	// duplicates are resolved automatically.
	DuplicateTolerance float64 `yaml:"duplicate_tolerance" envconfig:"DUPLICATE_TOLERANCE" default:"0.01"`

	// StaleThresholdHighFreq applies to monthly and quarterly series,
	// StaleThresholdLowFreq to yearly ones.
	StaleThresholdHighFreq time.Duration `yaml:"stale_threshold_high_freq" envconfig:"STALE_THRESHOLD_HIGH_FREQ" default:"4320h"`
	StaleThresholdLowFreq  time.Duration `yaml:"stale_threshold_low_freq" envconfig:"STALE_THRESHOLD_LOW_FREQ" default:"17520h"`

	// AnomalyMetrics lists the stress ratios scanned by the anomaly
	// detector; AnomalyThreshold is the pooled |z| cutoff.
	AnomalyMetrics   []string `yaml:"anomaly_metrics" envconfig:"ANOMALY_METRICS" default:"debt_pct_gdp,deficit_pct_gdp"`
	AnomalyThreshold float64  `yaml:"anomaly_threshold" envconfig:"ANOMALY_THRESHOLD" default:"2.0"`

	// MinObservations gates both the regression engine and the forecaster.
	MinObservations int `yaml:"min_observations" envconfig:"MIN_OBSERVATIONS" default:"8"`

	// ForecastHorizon is the number of step-ahead periods produced per
	// (entity, metric) pair.
	ForecastHorizon int `yaml:"forecast_horizon" envconfig:"FORECAST_HORIZON" default:"3"`

	// FitTimeout bounds each per-entity model fit so a slow entity cannot
	// block the run.
	FitTimeout time.Duration `yaml:"fit_timeout" envconfig:"FIT_TIMEOUT" default:"30s"`

	// MaxConcurrency caps parallel per-entity fits.
	MaxConcurrency int `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" default:"4"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("FISCAL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs merges file config with env config, field by field. An
// explicitly set environment variable takes precedence over the file; a
// non-zero file value takes precedence over envconfig defaults. Fields the
// file omits keep their env/default value.
func mergeConfigs(file, env Config) Config {
	merged := env

	overrideInt(&merged.Server.Port, file.Server.Port, "SERVER_PORT")
	overrideDuration(&merged.Server.ReadTimeout, file.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	overrideDuration(&merged.Server.WriteTimeout, file.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	overrideDuration(&merged.Server.IdleTimeout, file.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT")
	overrideDuration(&merged.Server.ShutdownTimeout, file.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	overrideFloat(&merged.Server.RateLimitRPS, file.Server.RateLimitRPS, "SERVER_RATE_LIMIT_RPS")
	overrideInt(&merged.Server.RateLimitBurst, file.Server.RateLimitBurst, "SERVER_RATE_LIMIT_BURST")

	overrideString(&merged.Logging.Level, file.Logging.Level, "LOGGING_LEVEL")
	overrideString(&merged.Logging.Output, file.Logging.Output, "LOGGING_OUTPUT")
	overrideString(&merged.Logging.FilePath, file.Logging.FilePath, "LOGGING_FILE_PATH")

	overrideString(&merged.Paths.DataDir, file.Paths.DataDir, "PATHS_DATA_DIR")
	overrideString(&merged.Paths.ReportsDir, file.Paths.ReportsDir, "PATHS_REPORTS_DIR")
	overrideString(&merged.Paths.LogsDir, file.Paths.LogsDir, "PATHS_LOGS_DIR")

	overrideStrings(&merged.Pipeline.AuthoritativeSources, file.Pipeline.AuthoritativeSources, "PIPELINE_AUTHORITATIVE_SOURCES")
	overrideFloat(&merged.Pipeline.DuplicateTolerance, file.Pipeline.DuplicateTolerance, "PIPELINE_DUPLICATE_TOLERANCE")
	overrideDuration(&merged.Pipeline.StaleThresholdHighFreq, file.Pipeline.StaleThresholdHighFreq, "PIPELINE_STALE_THRESHOLD_HIGH_FREQ")
	overrideDuration(&merged.Pipeline.StaleThresholdLowFreq, file.Pipeline.StaleThresholdLowFreq, "PIPELINE_STALE_THRESHOLD_LOW_FREQ")
	overrideStrings(&merged.Pipeline.AnomalyMetrics, file.Pipeline.AnomalyMetrics, "PIPELINE_ANOMALY_METRICS")
	overrideFloat(&merged.Pipeline.AnomalyThreshold, file.Pipeline.AnomalyThreshold, "PIPELINE_ANOMALY_THRESHOLD")
	overrideInt(&merged.Pipeline.MinObservations, file.Pipeline.MinObservations, "PIPELINE_MIN_OBSERVATIONS")
	overrideInt(&merged.Pipeline.ForecastHorizon, file.Pipeline.ForecastHorizon, "PIPELINE_FORECAST_HORIZON")
	overrideDuration(&merged.Pipeline.FitTimeout, file.Pipeline.FitTimeout, "PIPELINE_FIT_TIMEOUT")
	overrideInt(&merged.Pipeline.MaxConcurrency, file.Pipeline.MaxConcurrency, "PIPELINE_MAX_CONCURRENCY")

	return merged
}

// envSet reports whether the prefixed environment variable is explicitly set
func envSet(key string) bool {
	_, ok := os.LookupEnv("FISCAL_" + key)
	return ok
}

func overrideInt(dst *int, v int, key string) {
	if v != 0 && !envSet(key) {
		*dst = v
	}
}

func overrideFloat(dst *float64, v float64, key string) {
	if v != 0 && !envSet(key) {
		*dst = v
	}
}

func overrideString(dst *string, v, key string) {
	if v != "" && !envSet(key) {
		*dst = v
	}
}

func overrideDuration(dst *time.Duration, v time.Duration, key string) {
	if v != 0 && !envSet(key) {
		*dst = v
	}
}

func overrideStrings(dst *[]string, v []string, key string) {
	if len(v) > 0 && !envSet(key) {
		*dst = v
	}
}

// getConfigFilePath returns the path to the YAML config file
func getConfigFilePath() string {
	if path := os.Getenv("FISCAL_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}

// resolvePaths makes all configured paths absolute
func (c *Config) resolvePaths() error {
	base, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	c.Paths.DataDir = resolve(c.Paths.DataDir)
	c.Paths.ReportsDir = resolve(c.Paths.ReportsDir)
	c.Paths.LogsDir = resolve(c.Paths.LogsDir)
	if !filepath.IsAbs(c.Logging.FilePath) {
		c.Logging.FilePath = filepath.Join(base, c.Logging.FilePath)
	}

	return nil
}

// validate checks configuration invariants
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Pipeline.DuplicateTolerance < 0 || c.Pipeline.DuplicateTolerance >= 1 {
		return fmt.Errorf("duplicate tolerance must be in [0, 1): %f", c.Pipeline.DuplicateTolerance)
	}
	if c.Pipeline.AnomalyThreshold <= 0 {
		return fmt.Errorf("anomaly threshold must be positive: %f", c.Pipeline.AnomalyThreshold)
	}
	if c.Pipeline.MinObservations < 2 {
		return fmt.Errorf("min observations must be at least 2: %d", c.Pipeline.MinObservations)
	}
	if c.Pipeline.ForecastHorizon < 1 {
		return fmt.Errorf("forecast horizon must be at least 1: %d", c.Pipeline.ForecastHorizon)
	}
	if c.Pipeline.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1: %d", c.Pipeline.MaxConcurrency)
	}
	if c.Pipeline.FitTimeout <= 0 {
		return fmt.Errorf("fit timeout must be positive: %s", c.Pipeline.FitTimeout)
	}
	if c.Pipeline.StaleThresholdHighFreq <= 0 || c.Pipeline.StaleThresholdLowFreq <= 0 {
		return fmt.Errorf("stale thresholds must be positive")
	}
	if len(c.Pipeline.AnomalyMetrics) == 0 {
		return fmt.Errorf("anomaly metrics must not be empty")
	}

	return nil
}

// EnsureDirs creates the configured data, reports, and logs directories
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ReportsDir, c.Paths.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
