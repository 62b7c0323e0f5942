// Package config provides the run configuration for the teamhub pipeline.
// A Config value is built once per pipeline run and passed explicitly into
// each stage entry point.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teamhub/teamhub/pkg/types"
)

// StoreType selects the relational store backend.
type StoreType string

const (
	StoreSQLite   StoreType = "sqlite"
	StorePostgres StoreType = "postgres"
	StoreObject   StoreType = "object"
)

// Config holds the configuration for one pipeline run.
type Config struct {
	// DataDir is the base directory for local data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Dataset describes the logical dataset being historized
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Upstream configures the catalog API client
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream"`

	// Store configures the relational store collaborator
	Store StoreConfig `json:"store" yaml:"store"`

	// Retry configures the stage retry policy of the run command
	Retry RetryConfig `json:"retry" yaml:"retry"`

	Log     LogConfig     `json:"log" yaml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// DatasetConfig names the dataset and tags its rows.
type DatasetConfig struct {
	// Name is the dataset name used in table references (e.g., "teams")
	Name string `json:"name" yaml:"name"`

	// HubName is the hub table name in the detailed layer (e.g., "hub_teams")
	HubName string `json:"hub_name" yaml:"hub_name"`

	// Source is the source tag stamped on every fetched row
	Source string `json:"source" yaml:"source"`
}

// UpstreamConfig holds the catalog API configuration.
type UpstreamConfig struct {
	BaseURL   string        `json:"base_url" yaml:"base_url"`
	Endpoint  string        `json:"endpoint" yaml:"endpoint"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
	UserAgent string        `json:"user_agent" yaml:"user_agent"`
}

// StoreConfig holds store backend configuration.
type StoreConfig struct {
	// Type is the backend: sqlite, postgres, object
	Type StoreType `json:"type" yaml:"type"`

	SQLite   SQLiteConfig   `json:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`
	Object   ObjectConfig   `json:"object" yaml:"object"`
}

// SQLiteConfig holds SQLite backend configuration.
type SQLiteConfig struct {
	// Path is the database file; defaults to <data_dir>/warehouse.db
	Path string `json:"path" yaml:"path"`
}

// PostgresConfig holds Postgres backend configuration.
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
	MaxConns int32  `json:"max_conns" yaml:"max_conns"`
}

// DSN returns the libpq style connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// MigrationURL returns the URL form understood by the migrate postgres driver.
func (p PostgresConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

// ObjectConfig holds object storage backend configuration.
type ObjectConfig struct {
	// Type is the object storage: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// WorkDir holds temporary files for uploads and downloads
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// RetryConfig is the bounded retry policy applied per stage.
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	Delay      time.Duration `json:"delay" yaml:"delay"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is json or console
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig configures stage metrics.
type MetricsConfig struct {
	// PushgatewayURL enables pushing metrics at the end of each stage
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`

	// Job is the Pushgateway job label
	Job string `json:"job" yaml:"job"`
}

// DefaultConfig returns the default configuration for local runs.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/teamhub",
		Dataset: DatasetConfig{
			Name:    "teams",
			HubName: "hub_teams",
			Source:  "API_NHL",
		},
		Upstream: UpstreamConfig{
			BaseURL:   "https://api.nhle.com/stats/rest/",
			Endpoint:  "en/team",
			Timeout:   30 * time.Second,
			UserAgent: "teamhub/1.0",
		},
		Store: StoreConfig{
			Type: StoreSQLite,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				DBName:   "teamhub",
				SSLMode:  "disable",
				MaxConns: 4,
			},
			Object: ObjectConfig{
				Type: "local",
			},
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			Delay:      15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Job: "teamhub",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/teamhub"
	}
	if c.Dataset.HubName == "" && c.Dataset.Name != "" {
		c.Dataset.HubName = "hub_" + c.Dataset.Name
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = filepath.Join(c.DataDir, "warehouse.db")
	}
	if c.Store.Object.Path == "" {
		c.Store.Object.Path = filepath.Join(c.DataDir, "objects")
	}
	if c.Store.Object.WorkDir == "" {
		c.Store.Object.WorkDir = filepath.Join(c.DataDir, "work")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Dataset.Name == "" {
		return fmt.Errorf("dataset.name is required")
	}
	if !types.IsIdentifier(c.Dataset.Name) {
		return fmt.Errorf("dataset.name %q must be lowercase letters, digits and underscores, starting with a letter", c.Dataset.Name)
	}
	if !types.IsIdentifier(c.Dataset.HubName) {
		return fmt.Errorf("dataset.hub_name %q must be lowercase letters, digits and underscores, starting with a letter", c.Dataset.HubName)
	}
	if c.Dataset.Source == "" {
		return fmt.Errorf("dataset.source is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}

	switch c.Store.Type {
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required")
		}
	case StorePostgres:
		if c.Store.Postgres.Host == "" || c.Store.Postgres.DBName == "" {
			return fmt.Errorf("store.postgres.host and store.postgres.dbname are required")
		}
	case StoreObject:
		if c.Store.Object.Type != "local" && c.Store.Object.Type != "s3" {
			return fmt.Errorf("invalid object storage type: %s (must be local or s3)", c.Store.Object.Type)
		}
		if c.Store.Object.Type == "s3" && c.Store.Object.S3.Bucket == "" {
			return fmt.Errorf("store.object.s3.bucket is required when object storage type is s3")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be sqlite, postgres, or object)", c.Store.Type)
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative, got %v", c.Retry.Delay)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Log.Format)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		// Re-encoded as YAML so durations such as "15s" decode the same way
		// in both formats.
		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		converted, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		if err := yaml.Unmarshal(converted, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TEAMHUB_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TEAMHUB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TEAMHUB_DATASET"); v != "" {
		cfg.Dataset.Name = v
	}
	if v := os.Getenv("TEAMHUB_SOURCE"); v != "" {
		cfg.Dataset.Source = v
	}

	// Upstream
	if v := os.Getenv("TEAMHUB_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("TEAMHUB_UPSTREAM_ENDPOINT"); v != "" {
		cfg.Upstream.Endpoint = v
	}
	if v := os.Getenv("TEAMHUB_UPSTREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.Timeout = d
		}
	}

	// Store
	if v := os.Getenv("TEAMHUB_STORE_TYPE"); v != "" {
		cfg.Store.Type = StoreType(v)
	}
	if v := os.Getenv("TEAMHUB_SQLITE_PATH"); v != "" {
		cfg.Store.SQLite.Path = v
	}
	if v := os.Getenv("TEAMHUB_PG_HOST"); v != "" {
		cfg.Store.Postgres.Host = v
	}
	if v := os.Getenv("TEAMHUB_PG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Store.Postgres.Port = port
		}
	}
	if v := os.Getenv("TEAMHUB_PG_USER"); v != "" {
		cfg.Store.Postgres.User = v
	}
	if v := os.Getenv("TEAMHUB_PG_PASSWORD"); v != "" {
		cfg.Store.Postgres.Password = v
	}
	if v := os.Getenv("TEAMHUB_PG_DBNAME"); v != "" {
		cfg.Store.Postgres.DBName = v
	}
	if v := os.Getenv("TEAMHUB_PG_SSLMODE"); v != "" {
		cfg.Store.Postgres.SSLMode = v
	}
	if v := os.Getenv("TEAMHUB_OBJECT_TYPE"); v != "" {
		cfg.Store.Object.Type = v
	}
	if v := os.Getenv("TEAMHUB_OBJECT_PATH"); v != "" {
		cfg.Store.Object.Path = v
	}
	if v := os.Getenv("TEAMHUB_S3_BUCKET"); v != "" {
		cfg.Store.Object.S3.Bucket = v
	}
	if v := os.Getenv("TEAMHUB_S3_REGION"); v != "" {
		cfg.Store.Object.S3.Region = v
	}
	if v := os.Getenv("TEAMHUB_S3_ENDPOINT"); v != "" {
		cfg.Store.Object.S3.Endpoint = v
	}

	// Retry
	if v := os.Getenv("TEAMHUB_RETRY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv("TEAMHUB_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.Delay = d
		}
	}

	// Observability
	if v := os.Getenv("TEAMHUB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TEAMHUB_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TEAMHUB_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
}

// EnsureDirectories creates the local directories the configured backend needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	switch c.Store.Type {
	case StoreSQLite:
		dirs = append(dirs, filepath.Dir(c.Store.SQLite.Path))
	case StoreObject:
		dirs = append(dirs, c.Store.Object.WorkDir)
		if c.Store.Object.Type == "local" {
			dirs = append(dirs, c.Store.Object.Path)
		}
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
