// Package config provides layered configuration for the pixlift service:
// defaults, then an optional YAML/JSON file, then environment variables,
// then command-line flags, each layer overriding the previous one.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the pixlift service configuration.
type Config struct {
	// DataDir is the base directory for local state (ledger, local storage).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Optimize holds image optimization defaults
	Optimize OptimizeConfig `json:"optimize" yaml:"optimize"`

	// Ledger configuration
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// OptimizeConfig holds image optimization defaults.
type OptimizeConfig struct {
	// Quality is the default compression quality (1-100)
	Quality int `json:"quality" yaml:"quality"`

	// MaxWidth is the default maximum width for downscaling
	MaxWidth int `json:"max_width" yaml:"max_width"`

	// MaxHeight is the default maximum height for downscaling
	MaxHeight int `json:"max_height" yaml:"max_height"`
}

// LedgerConfig holds upload ledger configuration.
type LedgerConfig struct {
	// Enabled controls whether completed uploads are recorded
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the ledger database path
	Path string `json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Pretty enables the human-readable console writer
	Pretty bool `json:"pretty" yaml:"pretty"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/pixlift",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
		Storage: StorageConfig{
			Type: "local",
			S3: S3Config{
				Region: "ap-northeast-2",
			},
		},
		Optimize: OptimizeConfig{
			Quality:   80,
			MaxWidth:  1920,
			MaxHeight: 1080,
		},
		Ledger: LedgerConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from all layers: a best-effort .env file,
// defaults, an optional config file, then environment variables.
func Load(configFile string) (*Config, error) {
	// Best effort, matching boto-style tooling conventions; a missing .env
	// is not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if configFile != "" {
		loaded, err := LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	LoadFromEnv(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file, layered over
// the defaults.
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
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables. Variables use
// the PIXLIFT_ prefix; AWS_REGION and S3_BUCKET_NAME are honored as well for
// compatibility with standard AWS tooling.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PIXLIFT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PIXLIFT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Storage configuration
	if v := os.Getenv("PIXLIFT_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("PIXLIFT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PIXLIFT_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("S3_BUCKET_NAME"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("PIXLIFT_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("PIXLIFT_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("PIXLIFT_S3_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}

	// Optimization defaults
	if v := os.Getenv("PIXLIFT_OPTIMIZE_QUALITY"); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			cfg.Optimize.Quality = q
		}
	}

	// Ledger configuration
	if v := os.Getenv("PIXLIFT_LEDGER_ENABLED"); v != "" {
		cfg.Ledger.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("PIXLIFT_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}

	// Logging configuration
	if v := os.Getenv("PIXLIFT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PIXLIFT_LOG_PRETTY"); v != "" {
		cfg.Logging.Pretty = v == "true" || v == "1"
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/pixlift"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.DataDir, "ledger.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Optimize.Quality < 1 || c.Optimize.Quality > 100 {
		return fmt.Errorf("optimize.quality must be between 1 and 100, got %d", c.Optimize.Quality)
	}
	if c.Optimize.MaxWidth < 1 || c.Optimize.MaxHeight < 1 {
		return fmt.Errorf("optimize.max_width and optimize.max_height must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// EnsureDirectories creates the directories the service writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}
	if c.Ledger.Enabled {
		dirs = append(dirs, filepath.Dir(c.Ledger.Path))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
