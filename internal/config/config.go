// Package config defines the wikisync configuration model and loads it from
// a YAML file, the environment (prefix WIKISYNC_) and optional .env files.
//
// Example:
//
//	api:
//	  url: https://wiki.example.org/w/api.php
//	  rate_limit: 5
//	storage:
//	  kind: mysql
//	  dsn: wiki:secret@tcp(localhost:3306)/wikidb
//	sync:
//	  jobs: [blocks, user_groups]
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. WIKISYNC_API_URL.
const EnvPrefix = "WIKISYNC"

// JobNames lists every sync job in its default run order.
var JobNames = []string{"blocks", "page_restrictions", "protected_titles", "user_groups"}

// Config is the fully resolved configuration of one process run.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig configures the remote api.php endpoint and its HTTP transport.
type APIConfig struct {
	URL                string        `mapstructure:"url"`
	UserAgent          string        `mapstructure:"user_agent"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	RateBurst          int           `mapstructure:"rate_burst"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// StorageConfig selects the destination database.
type StorageConfig struct {
	// Kind is one of mysql, postgres, sqlite, mssql.
	Kind string `mapstructure:"kind"`
	DSN  string `mapstructure:"dsn"`

	// TablePrefix is prepended to every table name, e.g. "mw_" or "mediawiki.".
	TablePrefix string `mapstructure:"table_prefix"`

	BatchSize int `mapstructure:"batch_size"`

	// CreateTables runs CREATE TABLE IF NOT EXISTS before loading.
	CreateTables bool `mapstructure:"create_tables"`
}

// SyncConfig selects jobs and their query options.
type SyncConfig struct {
	Parallel         bool                   `mapstructure:"parallel"`
	Jobs             []string               `mapstructure:"jobs"`
	Blocks           RangeConfig            `mapstructure:"blocks"`
	ProtectedTitles  RangeConfig            `mapstructure:"protected_titles"`
	PageRestrictions PageRestrictionsConfig `mapstructure:"page_restrictions"`
	UserGroups       UserGroupsConfig       `mapstructure:"user_groups"`
}

// RangeConfig bounds a time-ordered list. Both ends are optional and accept
// ISO 8601 (2006-01-02T15:04:05Z) or 14-digit timestamps.
type RangeConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// PageRestrictionsConfig filters the protected pages that are listed.
type PageRestrictionsConfig struct {
	Types  []string `mapstructure:"types"`
	Levels []string `mapstructure:"levels"`
}

// UserGroupsConfig names the groups whose members are listed. Empty means
// every non-implicit group the wiki reports.
type UserGroupsConfig struct {
	Groups []string `mapstructure:"groups"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig selects a metrics backend.
type MetricsConfig struct {
	// Backend is one of none, pushgateway, datadog.
	Backend        string `mapstructure:"backend"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	DatadogAddr    string `mapstructure:"datadog_addr"`
	Job            string `mapstructure:"job"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "")
	v.SetDefault("api.user_agent", "wikisync/1.0")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.initial_backoff", 500*time.Millisecond)
	v.SetDefault("api.max_backoff", 10*time.Second)
	v.SetDefault("api.rate_limit", 0.0)
	v.SetDefault("api.rate_burst", 1)
	v.SetDefault("api.username", "")
	v.SetDefault("api.password", "")
	v.SetDefault("api.insecure_skip_verify", false)

	v.SetDefault("storage.kind", "mysql")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.table_prefix", "")
	v.SetDefault("storage.batch_size", 500)
	v.SetDefault("storage.create_tables", false)

	v.SetDefault("sync.parallel", false)
	v.SetDefault("sync.jobs", JobNames)
	v.SetDefault("sync.blocks.start", "")
	v.SetDefault("sync.blocks.end", "")
	v.SetDefault("sync.protected_titles.start", "")
	v.SetDefault("sync.protected_titles.end", "")
	v.SetDefault("sync.page_restrictions.types", []string{"edit", "move"})
	v.SetDefault("sync.page_restrictions.levels", []string{"sysop", "autoconfirmed"})
	v.SetDefault("sync.user_groups.groups", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.datadog_addr", "")
	v.SetDefault("metrics.job", "wikisync")
}

// Load resolves the configuration. envFile, when set, must exist; otherwise a
// ./.env file is loaded if present. Variables already set in the process
// environment win over .env values. path is an optional YAML file; the
// environment overrides it.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
