// Package config holds all recollect configuration. The capacity and
// threshold constants are empirical defaults, not invariants, so every one
// of them can be overridden via ~/.recollect/config.yml or RECOLLECT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all recollect configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Memory      MemoryConfig      `mapstructure:"memory"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MemoryConfig carries the tier capacities, admission thresholds, and
// classification word lists.
type MemoryConfig struct {
	WorkingCapacity   int `mapstructure:"working_capacity"`
	ShortTermCapacity int `mapstructure:"short_term_capacity"`
	LongTermCapacity  int `mapstructure:"long_term_capacity"`
	SignificantEvents int `mapstructure:"significant_events"`

	WorkingThreshold     float64 `mapstructure:"working_threshold"`
	LongTermThreshold    float64 `mapstructure:"long_term_threshold"`
	SignificantThreshold float64 `mapstructure:"significant_threshold"`

	ConversationGap time.Duration `mapstructure:"conversation_gap"`

	HighIntensityEmotions []string `mapstructure:"high_intensity_emotions"`
}

type BackupConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	History   int           `mapstructure:"history"`
	QueueSize int           `mapstructure:"queue_size"`
}

type MaintenanceConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type PersistenceConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.bind", "127.0.0.1")
	v.SetDefault("server.port", 37791)
	v.SetDefault("database.path", "")

	v.SetDefault("memory.working_capacity", 20)
	v.SetDefault("memory.short_term_capacity", 50)
	v.SetDefault("memory.long_term_capacity", 500)
	v.SetDefault("memory.significant_events", 25)
	v.SetDefault("memory.working_threshold", 0.7)
	v.SetDefault("memory.long_term_threshold", 0.8)
	v.SetDefault("memory.significant_threshold", 0.9)
	v.SetDefault("memory.conversation_gap", 30*time.Minute)
	v.SetDefault("memory.high_intensity_emotions", []string{
		"despairing", "hopeless", "suicidal", "panicked",
		"terrified", "furious", "devastated", "overwhelmed",
	})

	v.SetDefault("backup.interval", 5*time.Minute)
	v.SetDefault("backup.history", 10)
	v.SetDefault("backup.queue_size", 32)

	v.SetDefault("maintenance.interval", 5*time.Minute)

	v.SetDefault("persistence.timeout", 2*time.Second)
}

// Default returns the built-in configuration, used by tests and as the
// base for Load.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads ~/.recollect/config.yml when present and applies RECOLLECT_*
// environment overrides on top of the defaults. A missing config file is
// not an error.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".recollect"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("recollect")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
