// Package config loads service settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every setting needed to boot the discipline service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Engine        EngineConfig        `yaml:"engine"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// DatabaseConfig selects the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// EngineConfig tunes the processing facade.
type EngineConfig struct {
	AbsenceWindowDays int `yaml:"absenceWindowDays"`
	MaxRetries        int `yaml:"maxRetries"`
}

// NotificationsConfig selects how disciplinary notifications leave the service.
type NotificationsConfig struct {
	Enabled    bool        `yaml:"enabled"`
	Driver     string      `yaml:"driver"` // log, redis
	BufferSize int         `yaml:"bufferSize"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig configures the pub/sub notification sender.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// SchedulerConfig controls periodic threshold evaluation.
type SchedulerConfig struct {
	Enabled           bool          `yaml:"enabled"`
	ThresholdInterval time.Duration `yaml:"thresholdInterval"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DISCIPLINE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Engine.AbsenceWindowDays < 1 {
		return fmt.Errorf("engine.absenceWindowDays must be at least 1, got %d", c.Engine.AbsenceWindowDays)
	}
	if c.Engine.MaxRetries < 1 {
		return fmt.Errorf("engine.maxRetries must be at least 1, got %d", c.Engine.MaxRetries)
	}
	switch c.Notifications.Driver {
	case "log":
	case "redis":
		if c.Notifications.Enabled && c.Notifications.Redis.Addr == "" {
			return errors.New("notifications.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("notifications.driver must be log or redis, got %q", c.Notifications.Driver)
	}
	if c.Scheduler.Enabled && c.Scheduler.ThresholdInterval <= 0 {
		return errors.New("scheduler.thresholdInterval must be positive")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			GracefulTimeout: 10 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{Path: "discipline.db"},
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Engine: EngineConfig{
			AbsenceWindowDays: 30,
			MaxRetries:        3,
		},
		Notifications: NotificationsConfig{
			Enabled:    true,
			Driver:     "log",
			BufferSize: 256,
			Redis: RedisConfig{
				Addr:    "127.0.0.1:6379",
				Channel: "discipline.notifications",
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:           true,
			ThresholdInterval: time.Hour,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISCIPLINE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("DISCIPLINE_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DISCIPLINE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DISCIPLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DISCIPLINE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DISCIPLINE_ABSENCE_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.AbsenceWindowDays = n
		}
	}
	if v := os.Getenv("DISCIPLINE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxRetries = n
		}
	}
	if v := os.Getenv("DISCIPLINE_NOTIFICATIONS_ENABLED"); v != "" {
		cfg.Notifications.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("DISCIPLINE_NOTIFICATIONS_DRIVER"); v != "" {
		cfg.Notifications.Driver = v
	}
	if v := os.Getenv("DISCIPLINE_REDIS_ADDR"); v != "" {
		cfg.Notifications.Redis.Addr = v
	}
	if v := os.Getenv("DISCIPLINE_REDIS_PASSWORD"); v != "" {
		cfg.Notifications.Redis.Password = v
	}
	if v := os.Getenv("DISCIPLINE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Notifications.Redis.DB = db
		}
	}
	if v := os.Getenv("DISCIPLINE_REDIS_CHANNEL"); v != "" {
		cfg.Notifications.Redis.Channel = v
	}
	if v := os.Getenv("DISCIPLINE_SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("DISCIPLINE_THRESHOLD_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.ThresholdInterval = d
		}
	}
}
