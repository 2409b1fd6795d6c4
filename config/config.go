// Package config loads mesh configuration from a YAML file, a .env file,
// and CSMESH_* environment variables, in that order of increasing
// precedence. Every field has a default that works for local in-process
// runs, so a zero Config is usable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that supports YAML parsing from strings like
// "1s", "500ms" or "1h30m" as well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var ns int64
		if err := unmarshal(&ns); err != nil {
			return fmt.Errorf("duration must be a string (e.g. '1s') or integer nanoseconds")
		}
		*d = Duration(ns)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// String returns the string representation.
func (d Duration) String() string { return time.Duration(d).String() }

// Config is the full mesh configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Router  RouterConfig  `yaml:"router"`
	Agents  AgentsConfig  `yaml:"agents"`
	Model   ModelConfig   `yaml:"model"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects and parameterizes the customer data store.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the SQLite database file. Ignored for the memory driver.
	Path string `yaml:"path"`
	// Seed loads the demo fixture rows on startup.
	Seed bool `yaml:"seed"`
}

// RouterConfig carries the orchestrator's timing and negotiation bounds.
type RouterConfig struct {
	HopTimeout      Duration `yaml:"hop_timeout"`
	QueryTimeout    Duration `yaml:"query_timeout"`
	MaxNegotiations int      `yaml:"max_negotiations"`
}

// AgentsConfig holds the listen and peer addresses for networked runs.
// In-process runs ignore it.
type AgentsConfig struct {
	DataListen      string `yaml:"data_listen"`
	SupportListen   string `yaml:"support_listen"`
	DataEndpoint    string `yaml:"data_endpoint"`
	SupportEndpoint string `yaml:"support_endpoint"`
}

// ModelConfig selects the responder used to phrase replies.
type ModelConfig struct {
	// Provider is "template", "anthropic" or "openai". The template provider
	// is deterministic and needs no credentials.
	Provider string `yaml:"provider"`
	// Name overrides the provider's default model.
	Name string `yaml:"name"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or environment
// overrides are present: seeded in-memory store, deterministic responder,
// info-level text logging.
func Default() Config {
	return Config{
		Store: StoreConfig{Driver: "memory", Seed: true},
		Router: RouterConfig{
			HopTimeout:      Duration(3 * time.Second),
			QueryTimeout:    Duration(15 * time.Second),
			MaxNegotiations: 3,
		},
		Agents: AgentsConfig{
			DataListen:      ":8081",
			SupportListen:   ":8082",
			DataEndpoint:    "http://localhost:8081",
			SupportEndpoint: "http://localhost:8082",
		},
		Model:   ModelConfig{Provider: "template"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty or missing), then a .env file in the
// working directory, then CSMESH_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Missing .env is the normal case.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() error {
	setString(&c.Store.Driver, "CSMESH_STORE_DRIVER")
	setString(&c.Store.Path, "CSMESH_STORE_PATH")
	setString(&c.Agents.DataListen, "CSMESH_DATA_LISTEN")
	setString(&c.Agents.SupportListen, "CSMESH_SUPPORT_LISTEN")
	setString(&c.Agents.DataEndpoint, "CSMESH_DATA_ENDPOINT")
	setString(&c.Agents.SupportEndpoint, "CSMESH_SUPPORT_ENDPOINT")
	setString(&c.Model.Provider, "CSMESH_MODEL_PROVIDER")
	setString(&c.Model.Name, "CSMESH_MODEL_NAME")
	setString(&c.Logging.Level, "CSMESH_LOG_LEVEL")
	setString(&c.Logging.Format, "CSMESH_LOG_FORMAT")

	if err := setBool(&c.Store.Seed, "CSMESH_STORE_SEED"); err != nil {
		return err
	}
	if err := setDuration(&c.Router.HopTimeout, "CSMESH_HOP_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Router.QueryTimeout, "CSMESH_QUERY_TIMEOUT"); err != nil {
		return err
	}
	return setInt(&c.Router.MaxNegotiations, "CSMESH_MAX_NEGOTIATIONS")
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("config: sqlite driver requires store.path")
	}
	switch c.Model.Provider {
	case "template", "anthropic", "openai":
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Model.Provider)
	}
	if c.Router.HopTimeout <= 0 || c.Router.QueryTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.Router.MaxNegotiations < 1 {
		return fmt.Errorf("config: max_negotiations must be at least 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setDuration(dst *Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = Duration(parsed)
	return nil
}
