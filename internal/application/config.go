// Package application wires configuration and startup for the simulator.
package application

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/campusdash/rncpsim/internal/intranet"
	"github.com/campusdash/rncpsim/internal/persistence"
)

// Config is the top-level service configuration.
type Config struct {
	Login      string          `yaml:"login"`
	CatalogDir string          `yaml:"catalog_dir"`
	HTTP       HTTPConfig      `yaml:"http"`
	Storage    StorageConfig   `yaml:"storage"`
	Intranet   intranet.Config `yaml:"intranet"`
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
}

// ReadTimeout returns the configured read timeout with a sane default.
func (c HTTPConfig) ReadTimeout() time.Duration {
	return secondsOr(c.ReadTimeoutSeconds, 10*time.Second)
}

// WriteTimeout returns the configured write timeout with a sane default.
func (c HTTPConfig) WriteTimeout() time.Duration {
	return secondsOr(c.WriteTimeoutSeconds, 10*time.Second)
}

// IdleTimeout returns the configured idle timeout with a sane default.
func (c HTTPConfig) IdleTimeout() time.Duration {
	return secondsOr(c.IdleTimeoutSeconds, 60*time.Second)
}

func secondsOr(s int, fallback time.Duration) time.Duration {
	if s <= 0 {
		return fallback
	}
	return time.Duration(s) * time.Second
}

// StorageConfig selects and configures the snapshot backend.
type StorageConfig struct {
	Backend  string                  `yaml:"backend"` // file | redis | postgres
	FileDir  string                  `yaml:"file_dir"`
	Redis    persistence.RedisConfig `yaml:"redis"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
}

// LoadConfig reads and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if c.Login == "" {
		return nil, fmt.Errorf("config: login is required")
	}
	if c.CatalogDir == "" {
		c.CatalogDir = "config/catalog"
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.FileDir == "" {
		c.Storage.FileDir = "data/snapshots"
	}
	return &c, nil
}

// OpenSnapshotStore builds the snapshot backend the config selects.
func OpenSnapshotStore(cfg StorageConfig) (persistence.SnapshotStore, error) {
	switch cfg.Backend {
	case "file":
		return persistence.NewFileStore(cfg.FileDir)
	case "redis":
		return persistence.NewRedisStore(cfg.Redis)
	case "postgres":
		return persistence.NewPostgresStore(cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
