package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	Name            string        `yaml:"name"`
	TargetSensor    string        `yaml:"target_sensor"`
	RealThermostats []string      `yaml:"real_thermostats"`
	WindowsSensor   string        `yaml:"windows_sensor"`
	MinTemp         *float64      `yaml:"min_temp"`
	MaxTemp         *float64      `yaml:"max_temp"`
	HotTolerance    *float64      `yaml:"hot_tolerance"`
	ColdTolerance   *float64      `yaml:"cold_tolerance"`
	WindowDelay     Duration      `yaml:"window_delay"`
	TestServer      bool          `yaml:"test_server"`
	CommandRateRPS  float64       `yaml:"command_rate_rps"`
	Log             LogConfig     `yaml:"log"`
	Database        DBConfig      `yaml:"database"`
	HTTP            HTTPConfig    `yaml:"http"`
	Metrics         MetricsConfig `yaml:"metrics"`
	History         HistoryConfig `yaml:"history"`
	ShutdownTimeout Duration      `yaml:"shutdown_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// DBConfig contains database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig contains the host-facing HTTP API settings.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MetricsConfig contains Prometheus exposure settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HistoryConfig contains event history retention settings.
type HistoryConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// Defaults carried over from the platform integration this daemon
// replaces.
const (
	DefaultMinTemp       = 7.0
	DefaultMaxTemp       = 25.0
	DefaultHotTolerance  = 0.5
	DefaultColdTolerance = 0.5
	DefaultWindowDelay   = 10 * time.Second
)

// Duration is a wrapper around time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "fusion"
	}
	if c.MinTemp == nil {
		c.MinTemp = ptr(DefaultMinTemp)
	}
	if c.MaxTemp == nil {
		c.MaxTemp = ptr(DefaultMaxTemp)
	}
	if c.HotTolerance == nil {
		c.HotTolerance = ptr(DefaultHotTolerance)
	}
	if c.ColdTolerance == nil {
		c.ColdTolerance = ptr(DefaultColdTolerance)
	}
	if c.WindowDelay == 0 {
		c.WindowDelay = Duration(DefaultWindowDelay)
	}
	if c.CommandRateRPS == 0 {
		c.CommandRateRPS = 10.0
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./fusion-thermostat.sqlite"
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8095
	}
	if c.History.CleanupInterval == 0 {
		c.History.CleanupInterval = Duration(24 * time.Hour)
	}
	if c.History.RetentionDays == 0 {
		c.History.RetentionDays = 30
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate rejects configurations the controller must not start with.
func (c *Config) Validate() error {
	if c.TargetSensor == "" {
		return errors.New("target_sensor is required")
	}
	if len(c.RealThermostats) == 0 {
		return errors.New("real_thermostats must list at least one thermostat")
	}
	if *c.MinTemp > *c.MaxTemp {
		return fmt.Errorf("min_temp %.1f exceeds max_temp %.1f", *c.MinTemp, *c.MaxTemp)
	}
	if *c.HotTolerance < 0 || *c.ColdTolerance < 0 {
		return errors.New("tolerances must be non-negative")
	}
	if c.WindowDelay < 0 {
		return errors.New("window_delay must be non-negative")
	}
	return nil
}

// HasWindowSensor reports whether a window sensor is configured.
func (c *Config) HasWindowSensor() bool {
	return c.WindowsSensor != ""
}

func ptr(v float64) *float64 {
	return &v
}

// expandEnvVars expands environment variables in the format ${VAR} or
// ${VAR:default}.
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
