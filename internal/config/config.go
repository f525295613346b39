package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no path is given on the command line and
// the MADARIS_CONFIG environment variable is unset.
const DefaultConfigPath = "config.yaml"

// Config is the top-level application configuration.
type Config struct {
	Listen   string         `yaml:"listen"`   // HTTP listen address, e.g. ":8080".
	Database DatabaseConfig `yaml:"database"` // Database settings.
	School   SchoolConfig   `yaml:"school"`   // School-level settings.
	SMTP     SMTPConfig     `yaml:"smtp"`     // Outbound mail settings.
	Log      LogConfig      `yaml:"log"`      // Logging settings.
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// DSN accepts a SQLite file path or a PostgreSQL URL; the dialect is
	// detected from the value.
	DSN string `yaml:"dsn"`
}

// SchoolConfig holds per-deployment school settings.
type SchoolConfig struct {
	Name          string `yaml:"name"`           // School display name.
	RecoveryEmail string `yaml:"recovery_email"` // Address allowed to request director recovery codes.
	AppDomain     string `yaml:"app_domain"`     // Public base URL, used in outbound mail.
}

// SMTPConfig holds outbound mail transport settings. Mail is disabled when
// Host is empty.
type SMTPConfig struct {
	Host     string `yaml:"host"`     // SMTP server host.
	Port     int    `yaml:"port"`     // SMTP server port.
	Username string `yaml:"username"` // SMTP auth username.
	Password string `yaml:"password"` // SMTP auth password.
	From     string `yaml:"from"`     // Sender address.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`        // Log level name, defaults to info.
	File       string `yaml:"file"`         // Optional log file; stdout when empty.
	MaxSizeMB  int    `yaml:"max_size_mb"`  // Rotation threshold in megabytes.
	MaxBackups int    `yaml:"max_backups"`  // Rotated files to keep.
	MaxAgeDays int    `yaml:"max_age_days"` // Days to keep rotated files.
}

// ResolveConfigPath returns the effective config path, preferring the
// explicit argument, then MADARIS_CONFIG, then the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("MADARIS_CONFIG")); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	cfg := &Config{}
	if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}
	cfg.applyDefaults()

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: database.dsn is required")
	}
	return cfg, nil
}

// applyDefaults fills unset fields with working defaults.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = ":8080"
	}
	if strings.TrimSpace(c.School.Name) == "" {
		c.School.Name = "Baza Systems"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = 587
	}
}
