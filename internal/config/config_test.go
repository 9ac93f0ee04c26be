package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Point the loader at a config file that does not exist so only
	// envconfig defaults apply.
	t.Setenv("FISCAL_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 0.01, cfg.Pipeline.DuplicateTolerance)
	assert.Equal(t, 8, cfg.Pipeline.MinObservations)
	assert.Equal(t, 3, cfg.Pipeline.ForecastHorizon)
	assert.Equal(t, 2.0, cfg.Pipeline.AnomalyThreshold)
	assert.Equal(t, []string{"IMF", "World Bank", "Central Bank"}, cfg.Pipeline.AuthoritativeSources)
	assert.Equal(t, []string{"debt_pct_gdp", "deficit_pct_gdp"}, cfg.Pipeline.AnomalyMetrics)
	assert.True(t, filepath.IsAbs(cfg.Paths.DataDir))
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
  read_timeout: 5s
logging:
  level: debug
paths:
  data_dir: testdata
pipeline:
  min_observations: 10
  forecast_horizon: 5
  duplicate_tolerance: 0.02
  anomaly_threshold: 2.5
  max_concurrency: 2
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	t.Setenv("FISCAL_CONFIG_FILE", configPath)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Pipeline.MinObservations)
	assert.Equal(t, 5, cfg.Pipeline.ForecastHorizon)
	assert.Equal(t, 0.02, cfg.Pipeline.DuplicateTolerance)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
pipeline:
  min_observations: 6
  forecast_horizon: 4
  anomaly_threshold: 2.5
  max_concurrency: 2
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	t.Setenv("FISCAL_CONFIG_FILE", configPath)

	cfg, err := Load()
	require.NoError(t, err)

	// Values the file sets win over defaults.
	assert.Equal(t, 6, cfg.Pipeline.MinObservations)
	assert.Equal(t, 4, cfg.Pipeline.ForecastHorizon)
	assert.Equal(t, 2.5, cfg.Pipeline.AnomalyThreshold)

	// Fields the file omits keep their defaults instead of zeroing out.
	assert.Equal(t, 30*time.Second, cfg.Pipeline.FitTimeout)
	assert.Equal(t, []string{"debt_pct_gdp", "deficit_pct_gdp"}, cfg.Pipeline.AnomalyMetrics)
	assert.Equal(t, 4320*time.Hour, cfg.Pipeline.StaleThresholdHighFreq)
	assert.Equal(t, 17520*time.Hour, cfg.Pipeline.StaleThresholdLowFreq)
	assert.Equal(t, 0.01, cfg.Pipeline.DuplicateTolerance)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
pipeline:
  min_observations: 6
  fit_timeout: 10s
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	t.Setenv("FISCAL_CONFIG_FILE", configPath)
	t.Setenv("FISCAL_PIPELINE_FIT_TIMEOUT", "45s")
	t.Setenv("FISCAL_PIPELINE_MIN_OBSERVATIONS", "12")

	cfg, err := Load()
	require.NoError(t, err)

	// Explicitly set environment variables beat the file.
	assert.Equal(t, 45*time.Second, cfg.Pipeline.FitTimeout)
	assert.Equal(t, 12, cfg.Pipeline.MinObservations)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: "invalid server port",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "tolerance out of range",
			mutate:  func(c *Config) { c.Pipeline.DuplicateTolerance = 1.5 },
			wantErr: "duplicate tolerance",
		},
		{
			name:    "non-positive anomaly threshold",
			mutate:  func(c *Config) { c.Pipeline.AnomalyThreshold = 0 },
			wantErr: "anomaly threshold",
		},
		{
			name:    "min observations too small",
			mutate:  func(c *Config) { c.Pipeline.MinObservations = 1 },
			wantErr: "min observations",
		},
		{
			name:    "zero horizon",
			mutate:  func(c *Config) { c.Pipeline.ForecastHorizon = 0 },
			wantErr: "forecast horizon",
		},
		{
			name:    "zero fit timeout",
			mutate:  func(c *Config) { c.Pipeline.FitTimeout = 0 },
			wantErr: "fit timeout",
		},
		{
			name:    "zero stale threshold",
			mutate:  func(c *Config) { c.Pipeline.StaleThresholdLowFreq = 0 },
			wantErr: "stale thresholds",
		},
		{
			name:    "empty anomaly metrics",
			mutate:  func(c *Config) { c.Pipeline.AnomalyMetrics = nil },
			wantErr: "anomaly metrics",
		},
		{
			name:    "zero server timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = 0 },
			wantErr: "server timeouts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Pipeline: PipelineConfig{
			DuplicateTolerance:     0.01,
			AnomalyThreshold:       2.0,
			AnomalyMetrics:         []string{"debt_pct_gdp"},
			MinObservations:        8,
			ForecastHorizon:        3,
			MaxConcurrency:         4,
			FitTimeout:             30 * time.Second,
			StaleThresholdHighFreq: 4320 * time.Hour,
			StaleThresholdLowFreq:  17520 * time.Hour,
		},
	}
}
