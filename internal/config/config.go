// Package config loads sprintboard settings from an optional config file and
// SPRINTBOARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // metrics.location must resolve in minimal containers

	"github.com/spf13/viper"

	"sprintboard/internal/storage/sqlite"
)

const envPrefix = "SPRINTBOARD"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Planning PlanningConfig `mapstructure:"planning"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
	// Location names the IANA zone that defines calendar days.
	Location string `mapstructure:"location"`
}

type SnapshotConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Workers  int           `mapstructure:"workers"`
}

type PlanningConfig struct {
	BacklogColumnPolicy string `mapstructure:"backlog_column_policy"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "web/dist")
	v.SetDefault("database.path", "data/sprintboard.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.cache_ttl", 30*time.Second)
	v.SetDefault("metrics.cache_size", 512)
	v.SetDefault("metrics.location", "UTC")
	v.SetDefault("snapshot.interval", time.Hour)
	v.SetDefault("snapshot.workers", 4)
	v.SetDefault("planning.backlog_column_policy", string(sqlite.ClearAllMemberships))
}

// Load reads configuration. An explicit path must exist; otherwise
// sprintboard.{toml,yaml} is looked up in the working directory and
// $HOME/.sprintboard and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("sprintboard")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sprintboard"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if _, err := sqlite.ParseBacklogPolicy(c.Planning.BacklogColumnPolicy); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot.interval must be positive, got %s", c.Snapshot.Interval)
	}
	if c.Snapshot.Workers <= 0 {
		return fmt.Errorf("snapshot.workers must be positive, got %d", c.Snapshot.Workers)
	}
	return nil
}

// BacklogPolicy returns the parsed planning.backlog_column_policy.
func (c *Config) BacklogPolicy() sqlite.BacklogPolicy {
	p, err := sqlite.ParseBacklogPolicy(c.Planning.BacklogColumnPolicy)
	if err != nil {
		return sqlite.ClearAllMemberships
	}
	return p
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Metrics.Location)
	if err != nil {
		return nil, fmt.Errorf("metrics.location: %w", err)
	}
	return loc, nil
}
