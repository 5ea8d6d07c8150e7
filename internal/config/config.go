// Package config loads bhavload configuration. Precedence, lowest to
// highest: built-in defaults, an optional YAML file, BHAV_* environment
// variables.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "github.com/anuradhakorde/candlestick-patterns/internal/errors"
)

const envPrefix = "BHAV"

// Default size limits. Configurable, not business rules.
const (
	DefaultMaxCSVSize     = 10 << 20
	DefaultMaxArchiveSize = 50 << 20
)

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Limits   LimitsConfig   `yaml:"limits"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig locates the PostgreSQL store. A non-empty DSN wins over
// the discrete fields.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn" envconfig:"DSN"`
	Host     string `yaml:"host" envconfig:"HOST"`
	Port     int    `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	User     string `yaml:"user" envconfig:"USER"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	Name     string `yaml:"name" envconfig:"NAME"`
	SSLMode  string `yaml:"sslmode" envconfig:"SSLMODE" validate:"oneof=disable require verify-ca verify-full"`
}

// ResolveDSN returns the connection string to dial.
func (d DatabaseConfig) ResolveDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// LimitsConfig bounds input sizes in bytes.
type LimitsConfig struct {
	MaxCSVSize     int64 `yaml:"max_csv_size" envconfig:"MAX_CSV_SIZE" validate:"min=1"`
	MaxArchiveSize int64 `yaml:"max_archive_size" envconfig:"MAX_ARCHIVE_SIZE" validate:"min=1"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output     string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath   string `yaml:"file_path" envconfig:"FILE_PATH"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS" validate:"min=0"`
	Compress   bool   `yaml:"compress" envconfig:"COMPRESS"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "candlesticks",
			SSLMode: "disable",
		},
		Limits: LimitsConfig{
			MaxCSVSize:     DefaultMaxCSVSize,
			MaxArchiveSize: DefaultMaxArchiveSize,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     "stdout",
			FilePath:   "logs/bhavload.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; the
// empty string skips the file layer. Environment variables are applied
// last so they win over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to apply environment overrides", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperrors.NewConfigError("invalid configuration", err)
	}
	if c.Limits.MaxArchiveSize < c.Limits.MaxCSVSize {
		return apperrors.NewConfigError("max_archive_size must be at least max_csv_size", nil)
	}
	if c.Logging.Output != "stdout" && c.Logging.FilePath == "" {
		return apperrors.NewConfigError("file_path is required when logging to a file", nil)
	}
	return nil
}
