// Package config handles configuration loading and management for oneshot.
// It supports XDG config paths, project-level overrides, .env files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ONESHOT_SERVER_ADDR.
const EnvPrefix = "ONESHOT"

// Config holds all configuration for oneshot.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Data         DataConfig         `mapstructure:"data"`
	Events       EventsConfig       `mapstructure:"events"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Log          LogConfig          `mapstructure:"log"`
}

// AnthropicConfig holds completion provider settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseBedrock    bool   `mapstructure:"use_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
	MaxIterations int    `mapstructure:"max_iterations"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig holds persistence settings. An empty Path uses the XDG data
// directory.
type StorageConfig struct {
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// DataConfig points at the brand data files the tools read.
type DataConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// EventsConfig holds status event delivery settings.
type EventsConfig struct {
	Buffer     int    `mapstructure:"buffer"`
	NATSURL    string `mapstructure:"nats_url"`
	NATSPrefix string `mapstructure:"nats_prefix"`
}

// OrchestratorConfig holds engine tunables.
type OrchestratorConfig struct {
	MaxParallel  int    `mapstructure:"max_parallel"`
	RoutingFile  string `mapstructure:"routing_file"`
	SummaryChars int    `mapstructure:"summary_chars"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from XDG paths, project overrides, .env files and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ONESHOT_*, ANTHROPIC_API_KEY)
// 2. .env in the current directory or its parent
// 3. Project config (.oneshot.yaml in current directory or parent)
// 4. User config (~/.config/oneshot/config.yaml)
// 5. Built-in defaults
func Load() (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Data.Dir = expandEnv(cfg.Data.Dir)
	cfg.Storage.Path = expandEnv(cfg.Storage.Path)
	return cfg, nil
}

// loadDotEnv reads .env from the working directory, then from its parent.
// Variables already set are never overwritten.
func loadDotEnv() {
	for _, path := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.use_bedrock", d.Anthropic.UseBedrock)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", d.Anthropic.AWSProfile)
	v.SetDefault("anthropic.max_iterations", d.Anthropic.MaxIterations)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())

	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.retention", d.Storage.Retention.String())

	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("data.watch", d.Data.Watch)

	v.SetDefault("events.buffer", d.Events.Buffer)
	v.SetDefault("events.nats_url", d.Events.NATSURL)
	v.SetDefault("events.nats_prefix", d.Events.NATSPrefix)

	v.SetDefault("orchestrator.max_parallel", d.Orchestrator.MaxParallel)
	v.SetDefault("orchestrator.routing_file", d.Orchestrator.RoutingFile)
	v.SetDefault("orchestrator.summary_chars", d.Orchestrator.SummaryChars)

	v.SetDefault("log.level", d.Log.Level)
}

// getUserConfigDir returns the XDG config directory for oneshot.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "oneshot")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "oneshot")
	}
	return filepath.Join(home, ".config", "oneshot")
}

// findProjectConfig searches for .oneshot.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".oneshot.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:         "claude-sonnet-4-20250514",
			AWSRegion:     "us-west-2",
			MaxIterations: 10,
		},
		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Retention: 30 * 24 * time.Hour,
		},
		Data: DataConfig{
			Dir:   "data",
			Watch: true,
		},
		Events: EventsConfig{
			Buffer:     64,
			NATSPrefix: "oneshot.events",
		},
		Orchestrator: OrchestratorConfig{
			MaxParallel:  0,
			SummaryChars: 500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
