package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anuradhakorde/candlestick-patterns/internal/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(10<<20), cfg.Limits.MaxCSVSize)
	assert.Equal(t, int64(50<<20), cfg.Limits.MaxArchiveSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
limits:
  max_csv_size: 1024
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1024), cfg.Limits.MaxCSVSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, int64(50<<20), cfg.Limits.MaxArchiveSize)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	path := writeConfigFile(t, `
limits:
  max_csv_size: 1024
database:
  dsn: "host=from-file"
`)
	t.Setenv("BHAV_LIMITS_MAX_CSV_SIZE", "2048")
	t.Setenv("BHAV_DATABASE_DSN", "host=from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(2048), cfg.Limits.MaxCSVSize)
	assert.Equal(t, "host=from-env", cfg.Database.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfig, apperrors.CodeOf(err))
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "limits: [not, a, mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfig, apperrors.CodeOf(err))
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
		},
		{
			name:   "unknown log output",
			mutate: func(c *Config) { c.Logging.Output = "syslog" },
		},
		{
			name:   "archive limit below csv limit",
			mutate: func(c *Config) { c.Limits.MaxArchiveSize = c.Limits.MaxCSVSize - 1 },
		},
		{
			name:   "zero csv limit",
			mutate: func(c *Config) { c.Limits.MaxCSVSize = 0 },
		},
		{
			name: "file output without path",
			mutate: func(c *Config) {
				c.Logging.Output = "file"
				c.Logging.FilePath = ""
			},
		},
		{
			name:   "unknown sslmode",
			mutate: func(c *Config) { c.Database.SSLMode = "maybe" },
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Database.Port = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeConfig, apperrors.CodeOf(err))
		})
	}
}

func TestDatabaseConfig_ResolveDSN(t *testing.T) {
	explicit := DatabaseConfig{DSN: "host=explicit port=1234"}
	assert.Equal(t, "host=explicit port=1234", explicit.ResolveDSN())

	discrete := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "loader",
		Password: "secret",
		Name:     "candlesticks",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=loader password=secret dbname=candlesticks sslmode=require",
		discrete.ResolveDSN())
}
