// Package config provides configuration settings for the link registry engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"go-link-registry/validate"
)

// Storage backends understood by the engine.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// EnvPrefix is prepended to every environment override, e.g. LINKREG_BASE_URL.
const EnvPrefix = "LINKREG"

var storageTypes = []string{StorageMemory, StorageRedis, StoragePostgres}

// Config holds the configuration settings for the engine.
type Config struct {
	BaseURL               string        `mapstructure:"base_url"`     // Public address short links are served from
	PathSegment           string        `mapstructure:"path_segment"` // Fixed segment between BaseURL and the code, may be empty
	CodeLength            int           `mapstructure:"code_length"`
	MaxGenerationAttempts int           `mapstructure:"max_generation_attempts"`
	StorageType           string        `mapstructure:"storage_type"`
	StorageCapacity       int           `mapstructure:"storage_capacity"` // memory backend only
	RedisAddr             string        `mapstructure:"redis_addr"`
	RedisPassword         string        `mapstructure:"redis_password"`
	RedisDB               int           `mapstructure:"redis_db"`
	RedisKeyPrefix        string        `mapstructure:"redis_key_prefix"`
	DatabaseDSN           string        `mapstructure:"database_dsn"`
	EvictionInterval      time.Duration `mapstructure:"eviction_interval"` // 0 disables the sweeper
	LogLevel              string        `mapstructure:"log_level"`
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:               "http://localhost:3000",
		PathSegment:           "s",
		CodeLength:            8,
		MaxGenerationAttempts: 10,
		StorageType:           StorageMemory,
		StorageCapacity:       1000000,
		RedisAddr:             "localhost:6379",
		RedisKeyPrefix:        "link:",
		EvictionInterval:      time.Minute,
		LogLevel:              "info",
	}
}

// Load reads the configuration from an optional file at path and from
// LINKREG_* environment variables, on top of DefaultConfig.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("base_url", defaults.BaseURL)
	v.SetDefault("path_segment", defaults.PathSegment)
	v.SetDefault("code_length", defaults.CodeLength)
	v.SetDefault("max_generation_attempts", defaults.MaxGenerationAttempts)
	v.SetDefault("storage_type", defaults.StorageType)
	v.SetDefault("storage_capacity", defaults.StorageCapacity)
	v.SetDefault("redis_addr", defaults.RedisAddr)
	v.SetDefault("redis_password", defaults.RedisPassword)
	v.SetDefault("redis_db", defaults.RedisDB)
	v.SetDefault("redis_key_prefix", defaults.RedisKeyPrefix)
	v.SetDefault("database_dsn", defaults.DatabaseDSN)
	v.SetDefault("eviction_interval", defaults.EvictionInterval)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.PathSegment = strings.Trim(cfg.PathSegment, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can build a working engine.
func (c *Config) Validate() error {
	if !validate.IsValidURL(c.BaseURL) {
		return fmt.Errorf("invalid base URL %q", c.BaseURL)
	}
	if c.CodeLength <= 0 {
		return errors.New("code length must be positive")
	}
	if c.MaxGenerationAttempts <= 0 {
		return errors.New("max generation attempts must be positive")
	}
	if !lo.Contains(storageTypes, c.StorageType) {
		return fmt.Errorf("unknown storage type %q, expected one of %s", c.StorageType, strings.Join(storageTypes, ", "))
	}
	switch c.StorageType {
	case StorageMemory:
		if c.StorageCapacity <= 0 {
			return errors.New("storage capacity must be positive")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address is required for redis storage")
		}
	case StoragePostgres:
		if c.DatabaseDSN == "" {
			return errors.New("database DSN is required for postgres storage")
		}
	}
	if c.EvictionInterval < 0 {
		return errors.New("eviction interval cannot be negative")
	}
	return nil
}
