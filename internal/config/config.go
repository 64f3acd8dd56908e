// Package config loads the daemon's on-disk YAML configuration: load
// file, apply defaults for anything unset, let environment variables
// override, then validate before the app is allowed to start. Customer
// logfile definitions are not part of this config -- those live in the
// config directory described by pkg/configdir.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"logscan/internal/tracing"
	"logscan/pkg/errs"
	"logscan/pkg/replication"
)

const component = "config"

// AppConfig is top-level daemon metadata.
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// ServerConfig is the HTTP admin/RPC surface's listen address.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MetricsConfig is the Prometheus /metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// StorageConfig locates the on-disk partition store (pkg/tsdb).
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// ConfigDirConfig locates the customer logfile-definition directory
// (pkg/configdir) that the Logfile Registry is backed by.
type ConfigDirConfig struct {
	Root string `yaml:"root"`
}

// AuthConfig carries the shared HMAC secret pkg/auth signs/verifies
// session tokens with.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// Config is the whole daemon configuration document.
type Config struct {
	App         AppConfig          `yaml:"app"`
	Server      ServerConfig       `yaml:"server"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Storage     StorageConfig      `yaml:"storage"`
	ConfigDir   ConfigDirConfig    `yaml:"config_dir"`
	Auth        AuthConfig         `yaml:"auth"`
	Replication replication.Config `yaml:"replication"`
	Tracing     tracing.Config     `yaml:"tracing"`
}

// Load reads configFile (if non-empty), applies defaults for anything
// left unset, lets environment variables override, then validates the
// result.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, errs.Runtime(component, "Load", "read config file").Wrap(err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.ParseError(component, "Load", "parse config file").Wrap(err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "logscand"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "v1.0.0"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "production"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "json"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = "0.0.0.0"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/var/lib/logscand/data"
	}
	if cfg.ConfigDir.Root == "" {
		cfg.ConfigDir.Root = "/etc/logscand/customers"
	}

	if cfg.Replication.ReplicationFactor == 0 {
		cfg.Replication.ReplicationFactor = 1
	}

	if cfg.Tracing == (tracing.Config{}) {
		cfg.Tracing = tracing.DefaultConfig()
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.LogLevel = getEnvString("LOGSCAND_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.Environment = getEnvString("LOGSCAND_ENVIRONMENT", cfg.App.Environment)

	cfg.Server.Host = getEnvString("LOGSCAND_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("LOGSCAND_SERVER_PORT", cfg.Server.Port)

	cfg.Metrics.Enabled = getEnvBool("LOGSCAND_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Port = getEnvInt("LOGSCAND_METRICS_PORT", cfg.Metrics.Port)

	cfg.Storage.DataDir = getEnvString("LOGSCAND_DATA_DIR", cfg.Storage.DataDir)
	cfg.ConfigDir.Root = getEnvString("LOGSCAND_CONFIG_DIR", cfg.ConfigDir.Root)

	cfg.Auth.Secret = getEnvString("LOGSCAND_AUTH_SECRET", cfg.Auth.Secret)

	cfg.Replication.LocalAddr = getEnvString("LOGSCAND_LOCAL_ADDR", cfg.Replication.LocalAddr)

	cfg.Tracing.Enabled = getEnvBool("LOGSCAND_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = getEnvString("LOGSCAND_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true, "panic": true,
}

func validate(cfg *Config) error {
	var problems []string

	if !validLogLevels[cfg.App.LogLevel] {
		problems = append(problems, fmt.Sprintf("invalid log level: %s", cfg.App.LogLevel))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server port: %d", cfg.Server.Port))
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		problems = append(problems, fmt.Sprintf("invalid metrics port: %d", cfg.Metrics.Port))
	}
	if cfg.Auth.Secret == "" {
		problems = append(problems, "auth secret must not be empty")
	}
	if cfg.Replication.ReplicationFactor <= 0 {
		problems = append(problems, "replication factor must be positive")
	}

	if len(problems) > 0 {
		return errs.Aggregate(component, "validate", problems)
	}
	return nil
}
