package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configDirName   = ".gcctl"
	defaultEndpoint = "http://localhost:5000"
	defaultOperator = "operator"
)

// Config is the gcctl client configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`

	v *viper.Viper
}

type ServerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type AuthConfig struct {
	Operator  string    `mapstructure:"operator"`
	Token     string    `mapstructure:"token"`
	ExpiresAt time.Time `mapstructure:"expires_at"`
}

// LoadConfig reads config.yaml from the working directory, $HOME/.gcctl or
// /etc/gcctl, or from file when given. GCCTL_* variables override file values.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/" + configDirName)
		v.AddConfigPath("/etc/gcctl/")
	}

	// GCCTL_SERVER_ENDPOINT, GCCTL_AUTH_TOKEN, ...
	v.SetEnvPrefix("GCCTL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"server.endpoint", "auth.operator", "auth.token"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetDefault("server.endpoint", defaultEndpoint)
	v.SetDefault("auth.operator", defaultOperator)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case file != "" && errors.Is(err, os.ErrNotExist):
			// an explicit file that does not exist yet is created by Save
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{v: v}
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hooks); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if file != "" {
		v.SetConfigFile(file)
	}
	return cfg, nil
}

// Path returns the file Save writes to
func (c *Config) Path() (string, error) {
	if c.v != nil {
		if used := c.v.ConfigFileUsed(); used != "" {
			return used, nil
		}
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, configDirName, "config.yaml"), nil
}

// Save writes the configuration back to its file, creating it if needed
func (c *Config) Save() error {
	path, err := c.Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := c.v
	if v == nil {
		v = viper.New()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("server.endpoint", c.Server.Endpoint)
	v.Set("auth.operator", c.Auth.Operator)
	v.Set("auth.token", c.Auth.Token)
	v.Set("auth.expires_at", c.Auth.ExpiresAt)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0o600)
}
