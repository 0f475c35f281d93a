package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// WorkDirName is the per-project directory holding config and state
const WorkDirName = ".bimdex"

// SupportedConfigVersions lists config schema versions this build can read
var SupportedConfigVersions = []int{1, 2}

// Config is the root configuration structure
type Config struct {
	Version int           `json:"version" mapstructure:"version"`
	Scene   SceneConfig   `json:"scene" mapstructure:"scene"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	History HistoryConfig `json:"history" mapstructure:"history"`
	Watch   WatchConfig   `json:"watch" mapstructure:"watch"`
}

// SceneConfig points at the default snapshot and metadata inputs.
// Categories optionally overrides the built-in category table.
type SceneConfig struct {
	Snapshot   string `json:"snapshot" mapstructure:"snapshot"`
	Metadata   string `json:"metadata" mapstructure:"metadata"`
	Categories string `json:"categories,omitempty" mapstructure:"categories"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Bind    string        `json:"bind" mapstructure:"bind"`
	Port    int           `json:"port" mapstructure:"port"`
	Auth    AuthConfig    `json:"auth" mapstructure:"auth"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// AuthConfig contains token auth settings for the HTTP server
type AuthConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	TokenHash string `json:"tokenHash" mapstructure:"tokenHash"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
}

// HistoryConfig controls the load history store
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// WatchConfig controls snapshot file watching
type WatchConfig struct {
	Enabled        bool `json:"enabled" mapstructure:"enabled"`
	DebounceMs     int  `json:"debounceMs" mapstructure:"debounceMs"`
	PollIntervalMs int  `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Scene: SceneConfig{
			Snapshot: "",
			Metadata: "",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
		Server: ServerConfig{
			Bind: "localhost",
			Port: 9320,
			Auth: AuthConfig{
				Enabled: false,
			},
			Metrics: MetricsConfig{
				Enabled:  true,
				Endpoint: "/metrics",
			},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(WorkDirName, "history.db"),
		},
		Watch: WatchConfig{
			Enabled:        false,
			DebounceMs:     500,
			PollIntervalMs: 2000,
		},
	}
}

// LoadConfig loads configuration from .bimdex/config.json under root
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("version", 1)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, WorkDirName))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, return default config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	// Unmarshal into config struct
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .bimdex/config.json under root
func (c *Config) Save(root string) error {
	configPath := filepath.Join(root, WorkDirName, "config.json")

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Write to file
	return os.WriteFile(configPath, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	supported := false
	for _, v := range SupportedConfigVersions {
		if c.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "port must be in 1..65535"}
	}
	if c.Server.Auth.Enabled && c.Server.Auth.TokenHash == "" {
		return &ConfigError{Field: "server.auth.tokenHash", Message: "auth enabled but no token hash configured"}
	}
	if c.Watch.Enabled && c.Watch.PollIntervalMs <= 0 {
		return &ConfigError{Field: "watch.pollIntervalMs", Message: "poll interval must be positive"}
	}

	return nil
}

// EnvOverride records a configuration value replaced from the environment
type EnvOverride struct {
	Variable string `json:"variable"`
	Field    string `json:"field"`
	Value    string `json:"value"`
}

// ApplyEnvOverrides applies BIMDEX_* environment variables on top of cfg
// and returns the list of overrides that took effect.
func ApplyEnvOverrides(cfg *Config) []EnvOverride {
	var overrides []EnvOverride

	apply := func(variable, field string, set func(raw string) bool) {
		raw, ok := os.LookupEnv(variable)
		if !ok || raw == "" {
			return
		}
		if set(raw) {
			overrides = append(overrides, EnvOverride{Variable: variable, Field: field, Value: raw})
		}
	}

	apply("BIMDEX_LOG_LEVEL", "logging.level", func(raw string) bool {
		cfg.Logging.Level = raw
		return true
	})
	apply("BIMDEX_LOG_FORMAT", "logging.format", func(raw string) bool {
		cfg.Logging.Format = raw
		return true
	})
	apply("BIMDEX_SCENE_SNAPSHOT", "scene.snapshot", func(raw string) bool {
		cfg.Scene.Snapshot = raw
		return true
	})
	apply("BIMDEX_SCENE_METADATA", "scene.metadata", func(raw string) bool {
		cfg.Scene.Metadata = raw
		return true
	})
	apply("BIMDEX_SERVER_BIND", "server.bind", func(raw string) bool {
		cfg.Server.Bind = raw
		return true
	})
	apply("BIMDEX_SERVER_PORT", "server.port", func(raw string) bool {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return false
		}
		cfg.Server.Port = port
		return true
	})
	apply("BIMDEX_HISTORY_ENABLED", "history.enabled", func(raw string) bool {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return false
		}
		cfg.History.Enabled = enabled
		return true
	})
	apply("BIMDEX_HISTORY_PATH", "history.path", func(raw string) bool {
		cfg.History.Path = raw
		return true
	})
	apply("BIMDEX_WATCH_ENABLED", "watch.enabled", func(raw string) bool {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return false
		}
		cfg.Watch.Enabled = enabled
		return true
	})

	return overrides
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
