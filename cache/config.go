/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cache

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the sturdyc settings.
type Config struct {
	// Enabled of false selects the no-op cache.
	Enabled bool `mapstructure:"enabled"`

	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int `mapstructure:"capacity"`

	// NumShards must be greater than 0.
	NumShards int `mapstructure:"num_shards"`

	// TTL must be greater than 0.
	TTL time.Duration `mapstructure:"ttl"`

	// EvictionPercentage is the share of entries dropped when full, 1-100.
	EvictionPercentage int `mapstructure:"eviction_percentage"`

	// EvictionInterval of zero uses the sturdyc default.
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	return nil
}

func (c Config) sturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
