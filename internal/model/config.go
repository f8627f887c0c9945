package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the REST and push-channel endpoints.
type ServerConfig struct {
	// APIURL is the REST base URL (e.g., http://localhost:3001/api).
	APIURL string `mapstructure:"api_url" yaml:"api_url"`

	// SocketURL is the websocket endpoint of the push channel.
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`

	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	MaxRetries        int `mapstructure:"max_retries" yaml:"max_retries"`
}

// RealtimeConfig controls the push-channel transport.
type RealtimeConfig struct {
	// Reconnect enables transport-level reconnect after network loss.
	Reconnect       bool `mapstructure:"reconnect" yaml:"reconnect"`
	ReconnectMaxSec int  `mapstructure:"reconnect_max_sec" yaml:"reconnect_max_sec"`
}

// NotificationsConfig controls the polled notification fetch.
type NotificationsConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// StoreConfig locates the local SQLite cache.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig controls the optional Prometheus listener. An empty
// Listen address disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Realtime      RealtimeConfig      `mapstructure:"realtime" yaml:"realtime"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Metrics       MetricsConfig       `mapstructure:"metrics" yaml:"metrics"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
}

// RequestTimeout returns the REST timeout as a duration.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

// PollInterval returns the notification poll interval as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Notifications.PollIntervalSec) * time.Second
}

// ReconnectMax returns the cap on transport reconnect backoff.
func (c *AppConfig) ReconnectMax() time.Duration {
	return time.Duration(c.Realtime.ReconnectMaxSec) * time.Second
}

// configDir returns ~/.config/taskboard, or "." if the home directory
// cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskboard")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			APIURL:            "http://localhost:3001/api",
			SocketURL:         "ws://localhost:3001/ws",
			RequestTimeoutSec: 30,
			MaxRetries:        3,
		},
		Realtime: RealtimeConfig{
			Reconnect:       true,
			ReconnectMaxSec: 30,
		},
		Notifications: NotificationsConfig{PollIntervalSec: 120},
		Store:         StoreConfig{Path: filepath.Join(configDir(), "taskboard.db")},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(configDir(), "taskboard.log"),
		},
		Display: DisplayConfig{Theme: "default"},
	}
}

// setDefaults mirrors defaultAppConfig into v so that missing keys
// resolve to sensible values.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("server.api_url", d.Server.APIURL)
	v.SetDefault("server.socket_url", d.Server.SocketURL)
	v.SetDefault("server.request_timeout_sec", d.Server.RequestTimeoutSec)
	v.SetDefault("server.max_retries", d.Server.MaxRetries)
	v.SetDefault("realtime.reconnect", d.Realtime.Reconnect)
	v.SetDefault("realtime.reconnect_max_sec", d.Realtime.ReconnectMaxSec)
	v.SetDefault("notifications.poll_interval_sec", d.Notifications.PollIntervalSec)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("display.theme", d.Display.Theme)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKBOARD_ override file values
// (e.g., TASKBOARD_SERVER_API_URL). If the file does not exist, defaults
// plus environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Server.RequestTimeoutSec <= 0 {
		cfg.Server.RequestTimeoutSec = 30
	}
	if cfg.Notifications.PollIntervalSec <= 0 {
		cfg.Notifications.PollIntervalSec = 120
	}
	if cfg.Realtime.ReconnectMaxSec <= 0 {
		cfg.Realtime.ReconnectMaxSec = 30
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("realtime", cfg.Realtime)
	v.Set("notifications", cfg.Notifications)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// EnsureConfig writes cfg to path when no file exists there yet. It
// reports whether a file was written.
func EnsureConfig(path string, cfg *AppConfig) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking config %s: %w", path, err)
	}
	if err := SaveConfig(path, cfg); err != nil {
		return false, err
	}
	return true, nil
}
