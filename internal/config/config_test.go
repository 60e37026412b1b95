package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Database.DSN != "file:./gaming_center.db" {
		t.Errorf("Unexpected default DSN: %s", cfg.Database.DSN)
	}
	if cfg.Database.MaxOpenConns != 1 {
		t.Errorf("Expected max_open_conns 1, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Presence.Schedule != "@every 30s" {
		t.Errorf("Unexpected presence schedule: %s", cfg.Presence.Schedule)
	}
	if cfg.Presence.HeartbeatTimeout != 2*time.Minute {
		t.Errorf("Expected heartbeat timeout 2m, got %v", cfg.Presence.HeartbeatTimeout)
	}
	if cfg.Metrics.MaxSessionDuration != 24*time.Hour {
		t.Errorf("Expected max session duration 24h, got %v", cfg.Metrics.MaxSessionDuration)
	}
	if cfg.Auth.Enabled {
		t.Error("Expected auth to be disabled by default")
	}
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	tempDir := t.TempDir()

	configFile := filepath.Join(tempDir, "gcserver.yaml")
	configContent := `
log:
  level: debug
server:
  host: 127.0.0.1
  port: 9090
  read_timeout: 10s
database:
  dsn: "file:/var/lib/gc/gc.db"
presence:
  heartbeat_timeout: 5m
metrics:
  enabled: false
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	envFile := filepath.Join(tempDir, "gcserver.env")
	envContent := `
# operator credentials
JWT_SECRET_KEY="test-jwt-secret-key-at-least-32-characters-long"
OPERATOR_KEY=front-desk
AUTH_ENABLED=true
`
	if err := os.WriteFile(envFile, []byte(envContent), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("SERVER_PORT", "8888")

	defer func() {
		os.Unsetenv("JWT_SECRET_KEY")
		os.Unsetenv("OPERATOR_KEY")
		os.Unsetenv("AUTH_ENABLED")
	}()

	cfg, err := Load(configFile, envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host from file, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("Expected env to override port, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Expected read timeout 10s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("Expected default write timeout to survive, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Database.DSN != "file:/var/lib/gc/gc.db" {
		t.Errorf("Unexpected DSN: %s", cfg.Database.DSN)
	}
	if !cfg.Auth.Enabled || cfg.Auth.OperatorKey != "front-desk" {
		t.Errorf("Expected auth from env file, got %+v", cfg.Auth)
	}
	if cfg.Auth.JWTSecretKey != "test-jwt-secret-key-at-least-32-characters-long" {
		t.Errorf("Expected quotes stripped from secret, got %q", cfg.Auth.JWTSecretKey)
	}
	if cfg.Presence.HeartbeatTimeout != 5*time.Minute {
		t.Errorf("Expected heartbeat timeout 5m, got %v", cfg.Presence.HeartbeatTimeout)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled from file")
	}
	if cfg.GetListenAddress() != "127.0.0.1:8888" {
		t.Errorf("Unexpected listen address %s", cfg.GetListenAddress())
	}
}

func TestLoad_ServicePrefixedOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("GCSERVER_SERVER_PORT", "7001")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Expected service-prefixed env to win, got %d", cfg.Server.Port)
	}
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("LOG_LEVEL=error\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected process env to win over env file, got %s", cfg.Log.Level)
	}
}

func TestLoad_InvalidEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("NOT_A_PAIR\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	_, err := Load("", envFile)
	if err == nil || !strings.Contains(err.Error(), "invalid line 1") {
		t.Fatalf("Expected invalid line error, got %v", err)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	if _, err := Load("", ""); err == nil {
		t.Fatal("Expected error for non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database DSN is required",
		},
		{
			name:    "connection pool larger than one",
			mutate:  func(c *Config) { c.Database.MaxOpenConns = 4 },
			wantErr: "max_open_conns must be 1",
		},
		{
			name:    "zero connection pool",
			mutate:  func(c *Config) { c.Database.MaxOpenConns = 0 },
			wantErr: "max_open_conns must be 1",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server port must be between 1 and 65535",
		},
		{
			name: "short jwt secret",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecretKey = "short"
				c.Auth.OperatorKey = "key"
			},
			wantErr: "at least 32 characters",
		},
		{
			name: "missing operator key",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecretKey = strings.Repeat("x", 32)
			},
			wantErr: "OPERATOR_KEY is required",
		},
		{
			name:    "empty presence schedule",
			mutate:  func(c *Config) { c.Presence.Schedule = "" },
			wantErr: "presence schedule is required",
		},
		{
			name:    "zero collect interval",
			mutate:  func(c *Config) { c.Metrics.CollectInterval = 0 },
			wantErr: "metrics collect interval must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			if err := NewLoader(LoaderConfig{}).Load(cfg); err != nil {
				t.Fatalf("Load defaults failed: %v", err)
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLogConfig_ZerologLevel(t *testing.T) {
	tests := []struct {
		cfg  LogConfig
		want zerolog.Level
	}{
		{LogConfig{Level: "debug"}, zerolog.DebugLevel},
		{LogConfig{Level: "WARN"}, zerolog.WarnLevel},
		{LogConfig{Level: "error"}, zerolog.ErrorLevel},
		{LogConfig{Level: "bogus"}, zerolog.InfoLevel},
		{LogConfig{Level: ""}, zerolog.InfoLevel},
		{LogConfig{Level: "error", Debug: true}, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		if got := tt.cfg.ZerologLevel(); got != tt.want {
			t.Errorf("ZerologLevel(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	defer os.Chdir(wd)

	if got := FindConfigFile("gc-test-service"); got != "" {
		t.Errorf("Expected no config file, got %s", got)
	}

	if err := os.MkdirAll("config", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	want := filepath.Join("config", "gc-test-service.yaml")
	if err := os.WriteFile(want, []byte("log: {}\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if got := FindConfigFile("gc-test-service"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if err := os.WriteFile("gc-test-service.env", []byte("A=1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if got := FindEnvironmentFile("gc-test-service"); got != "gc-test-service.env" {
		t.Errorf("Expected env file in cwd, got %s", got)
	}
}
