// Package config loads process settings from the environment. Queue tunables
// such as max_retries live in the database, not here.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const Prefix = "QUEUECTL"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	DataDir     string `envconfig:"DATA_DIR" default:"."`
	DBFile      string `envconfig:"DB_FILE" default:"queuectl.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	PIDFile     string `envconfig:"PID_FILE" default:"queuectl_master.pid"`

	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"500ms"`
	RecoveryInterval  time.Duration `envconfig:"RECOVERY_INTERVAL" default:"30s"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"5s"`
	LeaseGrace        time.Duration `envconfig:"LEASE_GRACE" default:"30s"`
	ShutdownGrace     time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
	MaxRestarts       int           `envconfig:"MAX_RESTARTS" default:"5"`

	DashboardAddr string `envconfig:"DASHBOARD_ADDR" default:"127.0.0.1:8080"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	NSQDAddr string `envconfig:"NSQD_ADDR"`
	NSQTopic string `envconfig:"NSQ_TOPIC" default:"queuectl.jobs"`
}

// Load reads an optional .env file from the working directory and then the
// QUEUECTL_ environment variables.
func Load() (*Config, error) {
	// Variables already set in the environment win over the file.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: POLL_INTERVAL must be positive", ErrInvalid)
	}
	if c.LeaseGrace < 0 || c.ShutdownGrace < 0 || c.RecoveryInterval < 0 || c.HeartbeatInterval < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("%w: MAX_RESTARTS must not be negative", ErrInvalid)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be text or json", ErrInvalid)
	}

	if c.DatabaseURL != "" && !c.UsesPostgres() {
		return fmt.Errorf("%w: DATABASE_URL must be a postgres:// URL", ErrInvalid)
	}

	return nil
}

// UsesPostgres reports whether DatabaseURL selects the PostgreSQL backend.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func (c *Config) DBPath() string {
	return c.resolve(c.DBFile)
}

func (c *Config) PIDPath() string {
	return c.resolve(c.PIDFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
