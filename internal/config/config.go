package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/clawinfra/smartroute/internal/router"
)

// ErrUnsupportedFormat is returned for config files whose extension is not
// .json, .yaml, .yml or .toml.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config holds all smartroute configuration
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server" toml:"server"`

	// Optional pattern corpus replacing the embedded one
	PatternsPath string `json:"patternsPath,omitempty" yaml:"patternsPath,omitempty" toml:"patternsPath,omitempty"`

	// Model health tracking
	Health HealthSettings `json:"health" yaml:"health" toml:"health"`

	// Periodic jobs run by 'smartroute watch'
	Maintenance MaintenanceConfig `json:"maintenance" yaml:"maintenance" toml:"maintenance"`

	// Routing overrides, merged onto the built-in defaults
	Routing router.ConfigOverride `json:"routing" yaml:"routing" toml:"routing"`
}

type ServerConfig struct {
	LogLevel    string `json:"logLevel" yaml:"logLevel" toml:"logLevel"`
	MetricsAddr string `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty" toml:"metricsAddr,omitempty"`
}

// HealthSettings is the file form of router.HealthConfig. Cooldown is a
// time.ParseDuration string such as "5m".
type HealthSettings struct {
	FailureThreshold int    `json:"failureThreshold" yaml:"failureThreshold" toml:"failureThreshold"`
	Cooldown         string `json:"cooldown" yaml:"cooldown" toml:"cooldown"`
	PersistPath      string `json:"persistPath,omitempty" yaml:"persistPath,omitempty" toml:"persistPath,omitempty"`
}

// MaintenanceConfig holds cron schedules ("@every 5m", "*/10 * * * *").
// An empty schedule disables the job.
type MaintenanceConfig struct {
	PersistHealth string `json:"persistHealth,omitempty" yaml:"persistHealth,omitempty" toml:"persistHealth,omitempty"`
	ReportStats   string `json:"reportStats,omitempty" yaml:"reportStats,omitempty" toml:"reportStats,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: "info",
		},
		Health: HealthSettings{
			FailureThreshold: 3,
			Cooldown:         "5m",
		},
		Maintenance: MaintenanceConfig{
			PersistHealth: "@every 5m",
		},
	}
}

// RoutingConfig resolves the routing section against the defaults.
func (c *Config) RoutingConfig() router.SmartRoutingConfig {
	return router.NewConfig(c.Routing)
}

// HealthConfig converts the health section for router.NewHealthTracker.
func (c *Config) HealthConfig() (router.HealthConfig, error) {
	hc := router.DefaultHealthConfig()
	if c.Health.FailureThreshold > 0 {
		hc.FailureThreshold = c.Health.FailureThreshold
	}
	if c.Health.Cooldown != "" {
		d, err := time.ParseDuration(c.Health.Cooldown)
		if err != nil {
			return hc, fmt.Errorf("parse health cooldown: %w", err)
		}
		hc.CooldownPeriod = d
	}
	hc.PersistPath = c.Health.PersistPath
	return hc, nil
}

// Corpus returns the pattern corpus named by PatternsPath, or the embedded
// default when none is set.
func (c *Config) Corpus() (*router.Corpus, error) {
	if c.PatternsPath == "" {
		return router.DefaultCorpus(), nil
	}
	return router.LoadCorpus(c.PatternsPath)
}

// ParseLevel maps a log level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type format int

const (
	formatJSON format = iota
	formatYAML
	formatTOML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Load reads a config file. The format follows the file extension.
func Load(path string) (*Config, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := decode(f, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func decode(f format, data []byte, cfg *Config) error {
	switch f {
	case formatYAML:
		return yaml.Unmarshal(data, cfg)
	case formatTOML:
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Save writes config in the format implied by the path's extension.
func (c *Config) Save(path string) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := c.encode(f)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0640)
}

func (c *Config) encode(f format) ([]byte, error) {
	switch f {
	case formatYAML:
		return yaml.Marshal(c)
	case formatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return json.MarshalIndent(c, "", "  ")
	}
}
