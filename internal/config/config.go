// Package config loads pm-sync configuration from defaults, an optional YAML
// file and PMSYNC_ environment variables, in that order of precedence.
package config

import (
	"time"
)

// ConfigPathEnvVar names an explicit config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PMSYNC_"

// DefaultConfigPaths are searched when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"/etc/pm-sync/config.yaml",
}

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Services []ServiceSeed  `koanf:"services" validate:"dive"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host               string        `koanf:"host"`
	Port               int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout        time.Duration `koanf:"read_timeout"`
	WriteTimeout       time.Duration `koanf:"write_timeout"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins        []string      `koanf:"cors_origins"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute" validate:"min=0"`
}

// DatabaseConfig selects and tunes the store.
type DatabaseConfig struct {
	Driver       string `koanf:"driver" validate:"oneof=sqlite postgres pgx"`
	DSN          string `koanf:"dsn" validate:"required"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"min=0"`
	MaxIdleConns int    `koanf:"max_idle_conns" validate:"min=0"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// SyncConfig controls the periodic sync.
type SyncConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"`
	WorkItemLimit int           `koanf:"work_item_limit" validate:"min=1"`
	ProjectLimit  int           `koanf:"project_limit" validate:"min=1"`
	Concurrency   int           `koanf:"concurrency" validate:"min=1,max=64"`
}

// SecurityConfig holds secrets. EncryptionSecret seals stored credentials;
// an empty JWTSecret disables bearer verification.
type SecurityConfig struct {
	EncryptionSecret string `koanf:"encryption_secret" validate:"required,min=16"`
	JWTSecret        string `koanf:"jwt_secret"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServiceSeed is a service created at startup when its ID is not yet stored.
type ServiceSeed struct {
	ID                string            `koanf:"id" validate:"required"`
	Type              string            `koanf:"type" validate:"required,oneof=github gitlab jira azure_devops confluence"`
	Name              string            `koanf:"name" validate:"required"`
	Endpoint          string            `koanf:"endpoint" validate:"omitempty,url"`
	Credentials       map[string]string `koanf:"credentials"`
	Enabled           bool              `koanf:"enabled"`
	RequestsPerMinute int               `koanf:"requests_per_minute" validate:"min=0"`
	RequestsPerHour   int               `koanf:"requests_per_hour" validate:"min=0"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       60 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 120,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "pm-sync.db",
			AutoMigrate: true,
		},
		Sync: SyncConfig{
			Enabled:       true,
			Interval:      time.Hour,
			WorkItemLimit: 1000,
			ProjectLimit:  50,
			Concurrency:   4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
