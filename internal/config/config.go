package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is used for config file discovery and service-prefixed env overrides
const ServiceName = "gcserver"

// Config contains all configuration for the billing server
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Presence PresenceConfig `yaml:"presence"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" default:"console"`
	Debug  bool   `yaml:"debug" env:"DEBUG" default:"false"`
}

// ConfigureZerolog sets the global zerolog level from the log configuration
func (c *LogConfig) ConfigureZerolog() {
	zerolog.SetGlobalLevel(c.ZerologLevel())
}

// ZerologLevel maps the configured level name to a zerolog level, defaulting to info
func (c *LogConfig) ZerologLevel() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// ServerConfig contains the HTTP listener configuration
type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" env:"SERVER_PORT" default:"5000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	DSN          string `yaml:"dsn" env:"DATABASE_URL" default:"file:./gaming_center.db"`
	Debug        bool   `yaml:"debug" env:"DATABASE_DEBUG" default:"false"`
	MaxOpenConns int    `yaml:"max_open_conns" default:"1"`
}

// AuthConfig contains operator authentication configuration
type AuthConfig struct {
	Enabled      bool          `yaml:"enabled" env:"AUTH_ENABLED" default:"false"`
	JWTSecretKey string        `yaml:"-" env:"JWT_SECRET_KEY"`
	OperatorKey  string        `yaml:"-" env:"OPERATOR_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" default:"24h"`
}

// PresenceConfig configures the sweeper that marks silent computers offline
type PresenceConfig struct {
	Enabled          bool          `yaml:"enabled" default:"true"`
	Schedule         string        `yaml:"schedule" default:"@every 30s"`
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout" default:"2m"`
}

// MetricsConfig configures the Prometheus gauge collector
type MetricsConfig struct {
	Enabled            bool          `yaml:"enabled" default:"true"`
	CollectInterval    time.Duration `yaml:"collect_interval" default:"30s"`
	MaxSessionDuration time.Duration `yaml:"max_session_duration" default:"24h"`
}

// Load loads the server configuration from defaults, files and environment
func Load(configFile, envFile string) (*Config, error) {
	cfg := &Config{}

	loader := NewLoader(LoaderConfig{
		ConfigFile:      configFile,
		EnvironmentFile: envFile,
		ServiceName:     ServiceName,
	})
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load %s configuration: %w", ServiceName, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s configuration validation failed: %w", ServiceName, err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Database.MaxOpenConns != 1 {
		return fmt.Errorf("database max_open_conns must be 1, SQLite uses a single connection")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if c.Auth.Enabled {
		if len(c.Auth.JWTSecretKey) < 32 {
			return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long when auth is enabled")
		}
		if c.Auth.OperatorKey == "" {
			return fmt.Errorf("OPERATOR_KEY is required when auth is enabled")
		}
		if c.Auth.TokenTTL <= 0 {
			return fmt.Errorf("auth token TTL must be positive")
		}
	}

	if c.Presence.Enabled {
		if c.Presence.Schedule == "" {
			return fmt.Errorf("presence schedule is required")
		}
		if c.Presence.HeartbeatTimeout <= 0 {
			return fmt.Errorf("presence heartbeat timeout must be positive")
		}
	}

	if c.Metrics.Enabled && c.Metrics.CollectInterval <= 0 {
		return fmt.Errorf("metrics collect interval must be positive")
	}
	return nil
}

// GetListenAddress returns the address the server should listen on
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
