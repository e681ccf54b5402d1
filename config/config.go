/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/suparena/persistkit/cache"
	"github.com/suparena/persistkit/datastore/badgerkv"
	"github.com/suparena/persistkit/datastore/ddb"
	"github.com/suparena/persistkit/datastore/mongodb"
)

// EnvPrefix prefixes every environment override, e.g. PERSISTKIT_BACKEND or
// PERSISTKIT_DYNAMODB_TABLE_NAME.
const EnvPrefix = "PERSISTKIT"

// Backend names.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendDynamoDB = "dynamodb"
	BackendMongo    = "mongodb"
)

type Config struct {
	Backend string `mapstructure:"backend"`

	// IndexMapFile is an optional YAML file of per-kind index maps.
	IndexMapFile string `mapstructure:"index_map_file"`

	Badger   badgerkv.Config `mapstructure:"badger"`
	DynamoDB ddb.Config      `mapstructure:"dynamodb"`
	Mongo    mongodb.Config  `mapstructure:"mongodb"`
	Cache    cache.Config    `mapstructure:"cache"`
	Log      LogConfig       `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File enables a rotated JSON log next to the console output.
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Dev        bool   `mapstructure:"dev"`
}

// Load reads configuration from defaults, the config file at path when given,
// and the environment, which also picks up an optional .env file. Environment
// variables override the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendMemory)
	v.SetDefault("index_map_file", "")

	b := badgerkv.DefaultConfig()
	v.SetDefault("badger.path", b.Path)
	v.SetDefault("badger.in_memory", b.InMemory)
	v.SetDefault("badger.sync_writes", b.SyncWrites)
	v.SetDefault("badger.num_versions_to_keep", b.NumVersionsToKeep)
	v.SetDefault("badger.gc_interval", b.GCInterval)
	v.SetDefault("badger.gc_discard_ratio", b.GCDiscardRatio)
	v.SetDefault("badger.max_txn_retries", b.MaxTxnRetries)

	v.SetDefault("dynamodb.region", "")
	v.SetDefault("dynamodb.table_name", "")
	v.SetDefault("dynamodb.endpoint", "")
	v.SetDefault("dynamodb.access_key_id", "")
	v.SetDefault("dynamodb.secret_access_key", "")

	m := mongodb.DefaultConfig()
	v.SetDefault("mongodb.uri", m.URI)
	v.SetDefault("mongodb.database", m.Database)
	v.SetDefault("mongodb.collection", m.Collection)
	v.SetDefault("mongodb.counters_collection", m.CountersCollection)
	v.SetDefault("mongodb.connect_timeout", m.ConnectTimeout)

	c := cache.DefaultConfig()
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.capacity", c.Capacity)
	v.SetDefault("cache.num_shards", c.NumShards)
	v.SetDefault("cache.ttl", c.TTL)
	v.SetDefault("cache.eviction_percentage", c.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.dev", false)
}

// Validate checks the settings the selected backend needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Badger.Path == "" && !c.Badger.InMemory {
			return fmt.Errorf("badger.path is required unless badger.in_memory is set")
		}
	case BackendDynamoDB:
		if c.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.table_name is required")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongodb.uri is required")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Cache.Enabled {
		if err := c.Cache.Validate(); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}
