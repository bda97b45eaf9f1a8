// Package config loads the service configuration from a YAML file with
// environment-variable overrides. A missing file yields the defaults so the
// service runs locally with no setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeoutSec  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSec int    `yaml:"write_timeout_seconds"`
	RateLimitPerSec int    `yaml:"rate_limit_per_second"`
	RateLimitBurst  int    `yaml:"rate_limit_burst"`
}

// DatabaseConfig configures the postgres store. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePrefix string `yaml:"file_prefix"`
}

// UpstreamConfig configures the commerce-backend client.
type UpstreamConfig struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientKey    string `yaml:"client_key"`
	ClientSecret string `yaml:"client_secret"`
	TimeoutSec   int    `yaml:"timeout_seconds"`
	CacheTTLSec  int    `yaml:"cache_ttl_seconds"`
}

// RedisConfig configures the optional upstream response cache. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SyncConfig configures the background document refresher.
type SyncConfig struct {
	IntervalSec int      `yaml:"interval_seconds"`
	Clients     []string `yaml:"clients"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Redis    RedisConfig    `yaml:"redis"`
	Sync     SyncConfig     `yaml:"sync"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 15,
			RateLimitPerSec: 20,
			RateLimitBurst:  40,
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Upstream: UpstreamConfig{
			TimeoutSec:  10,
			CacheTTLSec: 60,
		},
		Sync: SyncConfig{
			IntervalSec: 300,
		},
	}
}

// Load reads CONFIG_PATH (default config.yaml), applies environment
// overrides and returns the result. A missing file is not an error.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus env overrides.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Server.Port <= 0 {
		return nil, fmt.Errorf("server port must be positive")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Upstream.BaseURL, "UPSTREAM_BASE_URL")
	setString(&cfg.Upstream.TokenURL, "UPSTREAM_TOKEN_URL")
	setString(&cfg.Upstream.ClientKey, "UPSTREAM_CLIENT_KEY")
	setString(&cfg.Upstream.ClientSecret, "UPSTREAM_CLIENT_SECRET")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Sync.IntervalSec, "SYNC_INTERVAL_SECONDS")

	if raw := strings.TrimSpace(os.Getenv("SYNC_CLIENTS")); raw != "" {
		var clients []string
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				clients = append(clients, c)
			}
		}
		cfg.Sync.Clients = clients
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
