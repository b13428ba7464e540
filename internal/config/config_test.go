package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func validConfig() *Config {
	return &Config{
		Devices: []DeviceConfig{
			{Name: "emulator-1", Resource: "DailyQuest", Address: "127.0.0.1:5555"},
			{Name: "emulator-2", Resource: "DailyQuest", Config: "farming"},
		},
		Paths: PathsConfig{
			ResourceDirs: []string{"resources"},
			ConfigDir:    "configs",
		},
		Run: RunConfig{
			GracePeriodSeconds:    10,
			DefaultTimeoutSeconds: 3600,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if errs := validConfig().Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty device name",
			mutate: func(c *Config) { c.Devices[0].Name = "" },
			field:  "devices[0].name",
		},
		{
			name:   "invalid device name characters",
			mutate: func(c *Config) { c.Devices[0].Name = "-leading-dash" },
			field:  "devices[0].name",
		},
		{
			name:   "duplicate device names",
			mutate: func(c *Config) { c.Devices[1].Name = c.Devices[0].Name },
			field:  "devices[1].name",
		},
		{
			name:   "device without resource",
			mutate: func(c *Config) { c.Devices[1].Resource = "" },
			field:  "devices[1].resource",
		},
		{
			name:   "non-positive grace period",
			mutate: func(c *Config) { c.Run.GracePeriodSeconds = 0 },
			field:  "run.grace_period_seconds",
		},
		{
			name:   "negative default timeout",
			mutate: func(c *Config) { c.Run.DefaultTimeoutSeconds = -1 },
			field:  "run.default_timeout_seconds",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			field:  "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("Validate() should report an error")
			}
			found := false
			for _, err := range errs {
				if err.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want error on field %q", errs, tt.field)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("Error() = %q, want count header", msg)
	}
	if !strings.Contains(msg, "a: bad (got: 1)") {
		t.Errorf("Error() = %q, want first error listed", msg)
	}

	one := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if one.Error() != "a: bad (got: 1)" {
		t.Errorf("single error = %q", one.Error())
	}
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	viper.Set("devices", []map[string]any{
		{"name": "emulator-1", "resource": "DailyQuest", "address": "127.0.0.1:5555"},
	})
	viper.Set("run.grace_period_seconds", 5)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Run.GracePeriodSeconds != 5 {
		t.Errorf("GracePeriodSeconds = %d, want 5", cfg.Run.GracePeriodSeconds)
	}
	if cfg.Run.DefaultTimeoutSeconds != 3600 {
		t.Errorf("DefaultTimeoutSeconds = %d, want default 3600", cfg.Run.DefaultTimeoutSeconds)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default info", cfg.Logging.Level)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].Name != "emulator-1" {
		t.Errorf("Devices = %+v", cfg.Devices)
	}
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	viper.Set("logging.level", "shout")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an invalid log level")
	}
}

func TestConfig_Device(t *testing.T) {
	cfg := validConfig()

	if dev := cfg.Device("emulator-2"); dev == nil || dev.Config != "farming" {
		t.Errorf("Device(emulator-2) = %+v", dev)
	}
	if dev := cfg.Device("ghost"); dev != nil {
		t.Errorf("Device(ghost) = %+v, want nil", dev)
	}
}
