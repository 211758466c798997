// Package config loads lina settings. Values are layered: built-in defaults,
// then an optional YAML file, then LINA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/oMatheuss/lina/driver"
)

const (
	EnvPrefix         = "LINA"
	DefaultStepBudget = driver.DefaultStepBudget
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Driver DriverConfig `yaml:"driver"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type DriverConfig struct {
	// StepBudget bounds the instructions executed per quantum.
	StepBudget int `yaml:"step_budget" split_words:"true"`
}

type ServerConfig struct {
	Host string `yaml:"host" split_words:"true"`
	Port string `yaml:"port" split_words:"true"`
	// AllowOrigins feeds the CORS middleware; "*" allows any origin.
	AllowOrigins []string `yaml:"allow_origins" split_words:"true"`
}

type LogConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
	Path        string `yaml:"path" split_words:"true"`
}

func Default() *Config {
	return &Config{
		Driver: DriverConfig{StepBudget: DefaultStepBudget},
		Server: ServerConfig{Host: "127.0.0.1", Port: "8080", AllowOrigins: []string{"*"}},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. A missing file is an error; an empty path is not.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Driver.StepBudget <= 0 {
		return fmt.Errorf("%w: driver.step_budget must be positive, got %d", ErrInvalid, c.Driver.StepBudget)
	}
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: server.port %q", ErrInvalid, c.Server.Port)
	}
	if len(c.Server.AllowOrigins) == 0 {
		return fmt.Errorf("%w: server.allow_origins is empty", ErrInvalid)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// Addr is the listen address for the serve host.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
