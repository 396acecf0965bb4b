// Package config loads tool configuration from defaults, an optional
// config file, and DEVLINK_* environment variables, in that precedence
// order (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the CLI and the demo daemon need to find the
// device and talk to an app.
type Config struct {
	// SocketDir is the directory holding per-app control sockets.
	SocketDir string `mapstructure:"socket_dir"`

	// DeviceRoot is the directory standing in for the device filesystem.
	DeviceRoot string `mapstructure:"device_root"`

	// DeviceSerial names the device in logs and deployment records.
	DeviceSerial string `mapstructure:"device_serial"`

	// AppID is the default target app identifier.
	AppID string `mapstructure:"app_id"`

	// Token is the shared secret for privileged commands, in the
	// 0x-hex or decimal form accepted by security.ParseToken.
	Token string `mapstructure:"token"`

	// StrictVersion refuses to proceed on any protocol version skew.
	StrictVersion bool `mapstructure:"strict_version"`

	// HistoryDB is the path of the deployment history database.
	HistoryDB string `mapstructure:"history_db"`

	// LogLevel is the zerolog level name (trace..error).
	LogLevel string `mapstructure:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SocketDir:    defaultSocketDir(),
		DeviceRoot:   filepath.Join(dataDir(), "device"),
		DeviceSerial: "local-0",
		HistoryDB:    filepath.Join(dataDir(), "history.db"),
		LogLevel:     "info",
	}
}

// Load builds the effective configuration. When path is empty the
// default location ($XDG_CONFIG_HOME/devlink/devlink.yaml) is tried and
// its absence is not an error; an explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("socket_dir", defaults.SocketDir)
	v.SetDefault("device_root", defaults.DeviceRoot)
	v.SetDefault("device_serial", defaults.DeviceSerial)
	v.SetDefault("app_id", defaults.AppID)
	v.SetDefault("token", defaults.Token)
	v.SetDefault("strict_version", defaults.StrictVersion)
	v.SetDefault("history_db", defaults.HistoryDB)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix("DEVLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("devlink")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func defaultSocketDir() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "devlink")
	}
	return filepath.Join(os.TempDir(), "devlink")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "devlink")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devlink"
	}
	return filepath.Join(home, ".local", "share", "devlink")
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "devlink")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "devlink")
}
