// Package config loads the application configuration: the device roster,
// resource search paths, run tuning, and logging settings. Configuration is
// read through viper from a YAML file, environment variables, or flags
// bound by the CLI layer. Saved per-config option overlays live in their
// own JSON files and are served by Store.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete mfwrun configuration.
type Config struct {
	Devices []DeviceConfig `mapstructure:"devices"`
	Paths   PathsConfig    `mapstructure:"paths"`
	Run     RunConfig      `mapstructure:"run"`
	Logging LoggingConfig  `mapstructure:"logging"`
}

// DeviceConfig binds one named device to a resource.
type DeviceConfig struct {
	// Name identifies the device; it must be unique across the roster.
	Name string `mapstructure:"name"`
	// Resource is the resource_name of the descriptor this device runs.
	Resource string `mapstructure:"resource"`
	// Address is the device connection address, forwarded to the backend.
	Address string `mapstructure:"address"`
	// Config names the saved option overlay for this device. Empty means
	// the default overlay.
	Config string `mapstructure:"config"`
}

// PathsConfig controls where mfwrun finds and stores data.
type PathsConfig struct {
	// ResourceDirs are the directories walked for resource descriptors.
	ResourceDirs []string `mapstructure:"resource_dirs"`
	// ConfigDir holds saved option overlay files (<name>.json).
	ConfigDir string `mapstructure:"config_dir"`
	// LogDir is where the JSON log file is written. Empty logs to stderr.
	LogDir string `mapstructure:"log_dir"`
}

// RunConfig tunes run supervision.
type RunConfig struct {
	// GracePeriodSeconds is how long lanes get to acknowledge cancellation
	// before in-flight tasks are force-aborted.
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
	// DefaultTimeoutSeconds bounds a run when --timeout is not given.
	// Zero means unlimited.
	DefaultTimeoutSeconds int `mapstructure:"default_timeout_seconds"`
}

// GracePeriod returns the grace period as a time.Duration.
func (r *RunConfig) GracePeriod() time.Duration {
	return time.Duration(r.GracePeriodSeconds) * time.Second
}

// DefaultTimeout returns the default run timeout as a time.Duration.
func (r *RunConfig) DefaultTimeout() time.Duration {
	return time.Duration(r.DefaultTimeoutSeconds) * time.Second
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
}

var defaults = Default()

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			ResourceDirs: []string{"resources"},
			ConfigDir:    filepath.Join(ConfigDir(), "configs"),
		},
		Run: RunConfig{
			GracePeriodSeconds:    10,
			DefaultTimeoutSeconds: 3600,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	viper.SetDefault("paths.resource_dirs", defaults.Paths.ResourceDirs)
	viper.SetDefault("paths.config_dir", defaults.Paths.ConfigDir)
	viper.SetDefault("paths.log_dir", defaults.Paths.LogDir)

	viper.SetDefault("run.grace_period_seconds", defaults.Run.GracePeriodSeconds)
	viper.SetDefault("run.default_timeout_seconds", defaults.Run.DefaultTimeoutSeconds)

	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Device returns the configured device with the given name, or nil.
func (c *Config) Device(name string) *DeviceConfig {
	for i := range c.Devices {
		if c.Devices[i].Name == name {
			return &c.Devices[i]
		}
	}
	return nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mfwrun")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mfwrun"
	}
	return filepath.Join(home, ".config", "mfwrun")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
