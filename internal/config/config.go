// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the daemon's optional configuration file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

// DefaultPollInterval is the run loop's fallback check of the running flag.
const DefaultPollInterval = time.Second

// Config represents the complete daemon configuration.
// Command-line flags override every field.
type Config struct {
	// PIDFile is where the daemon records its process id. Empty disables it.
	PIDFile string `yaml:"pid_file,omitempty"`

	// NoFork keeps the daemon attached to the invoking terminal.
	NoFork bool `yaml:"no_fork"`

	// RestartOnWakeUp restarts the device listener after system resume.
	RestartOnWakeUp bool `yaml:"restart_on_wake_up"`

	// Hidraw restricts the listener to one device path.
	Hidraw string `yaml:"hidraw,omitempty"`

	// PollInterval bounds how long a missed stop wakeup can go unnoticed.
	PollInterval Duration `yaml:"poll_interval"`

	// LifecycleLog is an optional JSON-lines file of start/stop events.
	LifecycleLog string `yaml:"lifecycle_log,omitempty"`

	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig configures the optional metrics and health endpoint.
type MetricsConfig struct {
	// Listen is a host:port address. Empty disables the endpoint.
	Listen string `yaml:"listen,omitempty"`
}

// LogConfig configures the stderr log sink.
type LogConfig struct {
	// Format is json or text. Empty selects text on a terminal.
	Format string `yaml:"format,omitempty"`

	// AddSource adds file:line to records.
	AddSource bool `yaml:"add_source"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	// Exporter is "console", "otlp" (gRPC) or "otlp-http". Empty disables tracing.
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP receiver host:port.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS to the receiver.
	Insecure bool `yaml:"insecure"`

	// SampleRate is the fraction of traces recorded (0.0 - 1.0).
	SampleRate float64 `yaml:"sample_rate"`
}

// Duration is a time.Duration written as "1s" in YAML.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		PollInterval: Duration(DefaultPollInterval),
		Tracing:      TracingConfig{SampleRate: 1.0},
	}
}

// Load reads configPath, applies UNIFYD_* environment overrides and
// validates the result.
//
// An empty configPath means the default location; a missing file there is
// not an error. A missing file at an explicit path is.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		if p, err := ConfigPath(); err == nil {
			configPath = p
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, &unifyderrors.ConfigError{
					Key:    "config_file",
					Reason: fmt.Sprintf("failed to load from %s", configPath),
					Cause:  err,
				}
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, &unifyderrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values left by a partial file.
func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv overlays UNIFYD_* environment variables.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv("UNIFYD_PID_FILE"); val != "" {
		c.PIDFile = val
	}
	if val := os.Getenv("UNIFYD_NO_FORK"); val != "" {
		c.NoFork = parseBool(val)
	}
	if val := os.Getenv("UNIFYD_RESTART_ON_WAKE_UP"); val != "" {
		c.RestartOnWakeUp = parseBool(val)
	}
	if val := os.Getenv("UNIFYD_HIDRAW"); val != "" {
		c.Hidraw = val
	}
	if val := os.Getenv("UNIFYD_POLL_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return &unifyderrors.ConfigError{Key: "UNIFYD_POLL_INTERVAL", Reason: "not a duration", Cause: err}
		}
		c.PollInterval = Duration(d)
	}
	if val := os.Getenv("UNIFYD_LIFECYCLE_LOG"); val != "" {
		c.LifecycleLog = val
	}
	if val := os.Getenv("UNIFYD_METRICS_LISTEN"); val != "" {
		c.Metrics.Listen = val
	}
	if val := os.Getenv("UNIFYD_LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("UNIFYD_LOG_SOURCE"); val != "" {
		c.Log.AddSource = parseBool(val)
	}
	if val := os.Getenv("UNIFYD_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
	}
	if val := os.Getenv("UNIFYD_TRACING_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}
	if val := os.Getenv("UNIFYD_TRACING_INSECURE"); val != "" {
		c.Tracing.Insecure = parseBool(val)
	}
	return nil
}

func parseBool(val string) bool {
	b, err := strconv.ParseBool(val)
	return err == nil && b
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("poll_interval must be positive, got %v", c.PollInterval.D()))
	}

	if c.Metrics.Listen != "" {
		if err := validateListenAddr(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("metrics.listen: %v", err))
		}
	}

	switch c.Log.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	switch c.Tracing.Exporter {
	case "", "console":
	case "otlp", "otlp-http":
		if c.Tracing.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("tracing.endpoint is required for exporter %q", c.Tracing.Exporter))
		}
	default:
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [console, otlp, otlp-http], got %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// YAML renders the configuration as it would be written to disk.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
