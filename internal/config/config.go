// Package config handles configuration loading for the QC server.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. ALHENA_SERVER_PORT.
const EnvPrefix = "ALHENA"

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Data    DataConfig    `yaml:"data" envconfig:"DATA"`
	Session SessionConfig `yaml:"session" envconfig:"SESSION"`
	API     APIConfig     `yaml:"api" envconfig:"API"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port" envconfig:"PORT"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// DataConfig contains data source settings.
type DataConfig struct {
	// Root is prepended to every requested dataset directory.
	Root string `yaml:"root" envconfig:"ROOT"`
}

// SessionConfig contains session store settings.
type SessionConfig struct {
	Backend     string `yaml:"backend" envconfig:"BACKEND"`
	Secret      string `yaml:"secret" envconfig:"SECRET"`
	CookieName  string `yaml:"cookie_name" envconfig:"COOKIE_NAME"`
	TTLMinutes  int    `yaml:"ttl_minutes" envconfig:"TTL_MINUTES"`
	MaxSizeMB   int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	Shards      int    `yaml:"shards" envconfig:"SHARDS"`
	MaxSessions int    `yaml:"max_sessions" envconfig:"MAX_SESSIONS"`
	SQLitePath  string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	Compression string `yaml:"compression" envconfig:"COMPRESSION"`
}

// APIConfig contains response encoding settings.
type APIConfig struct {
	// NativeBooleans encodes is_contaminated as a JSON boolean. Off by
	// default: existing clients expect the strings "true"/"false".
	NativeBooleans bool `yaml:"native_booleans" envconfig:"NATIVE_BOOLEANS"`
}

// Load reads configuration from a YAML file, then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        5000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Data: DataConfig{
			Root: "/",
		},
		Session: SessionConfig{
			Backend:     "memory",
			Secret:      "alhenalite",
			CookieName:  "session",
			TTLMinutes:  60,
			MaxSizeMB:   1024,
			Shards:      8,
			MaxSessions: 64,
			SQLitePath:  "./data/sessions.sqlite",
			Compression: "zstd",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Data.Root == "" {
		cfg.Data.Root = defaults.Data.Root
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = defaults.Session.Backend
	}
	if cfg.Session.Secret == "" {
		cfg.Session.Secret = defaults.Session.Secret
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = defaults.Session.CookieName
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = defaults.Session.TTLMinutes
	}
	if cfg.Session.MaxSizeMB == 0 {
		cfg.Session.MaxSizeMB = defaults.Session.MaxSizeMB
	}
	if cfg.Session.Shards == 0 {
		cfg.Session.Shards = defaults.Session.Shards
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = defaults.Session.MaxSessions
	}
	if cfg.Session.SQLitePath == "" {
		cfg.Session.SQLitePath = defaults.Session.SQLitePath
	}
	if cfg.Session.Compression == "" {
		cfg.Session.Compression = defaults.Session.Compression
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case "memory", "lru", "sqlite":
	default:
		return fmt.Errorf("session.backend: unknown backend %q (want memory, lru or sqlite)", c.Session.Backend)
	}
	switch c.Session.Compression {
	case "zstd", "none":
	default:
		return fmt.Errorf("session.compression: unknown value %q (want zstd or none)", c.Session.Compression)
	}
	if s := c.Session.Shards; s&(s-1) != 0 || s < 0 {
		return fmt.Errorf("session.shards: %d is not a power of two", s)
	}
	return nil
}
