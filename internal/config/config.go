package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/combatplay/internal/battle/effects"
)

// Replay holds the configuration shared by the replay binaries.
type Replay struct {
	LogLevel string `yaml:"log_level"`

	Playback Playback             `yaml:"playback"`
	Statuses []effects.Definition `yaml:"statuses"`
	Database DatabaseConfig       `yaml:"database"`
	Server   Server               `yaml:"server"`

	// Headless replay
	Concurrency int `yaml:"concurrency"` // sessions replayed at once by cmd/replay
}

// Server holds the replay daemon's network settings.
type Server struct {
	BindAddress  string        `yaml:"bind_address"`
	Port         int           `yaml:"port"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // per-message deadline (default: 5s)
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // idle client disconnect (default: 120s)
	MaxLogBytes  int64         `yaml:"max_log_bytes"` // upload limit for POST /logs
}

// Addr returns host:port to listen on.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Default returns Replay config with sensible defaults.
func Default() Replay {
	return Replay{
		LogLevel: "info",
		Playback: DefaultPlayback(),
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "combatplay",
			Password: "combatplay",
			DBName:   "combatplay",
			SSLMode:  "disable",
		},
		Server: Server{
			BindAddress:  "0.0.0.0",
			Port:         8088,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  120 * time.Second,
			MaxLogBytes:  4 << 20,
		},
		Concurrency: 4,
	}
}

// Load loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Replay, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Playback.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Catalog builds the status catalog with configured overrides.
func (c Replay) Catalog() *effects.Catalog {
	return effects.NewCatalog(c.Statuses...)
}
