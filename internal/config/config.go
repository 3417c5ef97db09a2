package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Backend   BackendConfig
	Server    ServerConfig
	Log       LogConfig
	History   HistoryConfig
	Telemetry TelemetryConfig
}

// BackendConfig holds the Analysis Backend configuration
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout"`
}

// ServerConfig holds the web server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ChatIdleTimeout time.Duration `mapstructure:"chat_idle_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// HistoryConfig holds the transcript archive configuration. An empty DBPath disables it.
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TelemetryConfig holds the OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

const envPrefix = "GITMASTER"

var defaults = map[string]any{
	"backend.base_url":         "https://git-master-backend.vercel.app",
	"backend.timeout":          "120s",
	"backend.cleanup_timeout":  "5s",
	"server.host":              "0.0.0.0",
	"server.port":              "8080",
	"server.chat_idle_timeout": "30m",
	"log.level":                "info",
	"log.file":                 "",
	"history.db_path":          "",
	"telemetry.enabled":        false,
	"telemetry.dir":            "logs",
}

// Load reads config.yaml from the working directory, or the file named by CONFIG_PATH.
// The file is optional; GITMASTER_* environment variables override every key.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url %q: must be an absolute http(s) URL", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("invalid backend.timeout %s", c.Backend.Timeout)
	}
	if c.Backend.CleanupTimeout <= 0 {
		return fmt.Errorf("invalid backend.cleanup_timeout %s", c.Backend.CleanupTimeout)
	}
	if c.Server.ChatIdleTimeout <= 0 {
		return fmt.Errorf("invalid server.chat_idle_timeout %s", c.Server.ChatIdleTimeout)
	}
	return nil
}
