// Package config loads and validates the formwatch configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration, loaded from YAML.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Extract  ExtractConfig  `yaml:"extract"`
	Resolve  ResolveConfig  `yaml:"resolve"`
	Cycle    CycleConfig    `yaml:"cycle"`
	Title    TitleConfig    `yaml:"title"`
	LogLevel string         `yaml:"log_level"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"` // sqlite file path
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "local" or "s3"

	// Local backend.
	Root string `yaml:"root"`

	// S3 backend.
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// FetchConfig tunes the tiered fetch planner.
type FetchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// QuickHashBytes is how much of the body the quick-hash tier reads.
	QuickHashBytes int `yaml:"quick_hash_bytes"`

	// TrustValidators lets a full match on stored response validators
	// short-circuit to unchanged without a body fetch. Off by default:
	// validators drift on long intervals and are weak evidence alone.
	TrustValidators bool `yaml:"trust_validators"`

	MaxRetries       int    `yaml:"max_retries"`
	InitialBackoffMS int    `yaml:"initial_backoff_ms"`
	MaxBackoffMS     int    `yaml:"max_backoff_ms"`
	UserAgent        string `yaml:"user_agent"`
}

// Timeout returns the per-request deadline.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry delay.
func (f FetchConfig) InitialBackoff() time.Duration {
	return time.Duration(f.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the retry delay ceiling.
func (f FetchConfig) MaxBackoff() time.Duration {
	return time.Duration(f.MaxBackoffMS) * time.Millisecond
}

// ExtractConfig tunes text extraction and the OCR fallback.
type ExtractConfig struct {
	// MinCharsPerPage is the density below which a page is treated as
	// image-only and routed to OCR.
	MinCharsPerPage int  `yaml:"min_chars_per_page"`
	OCREnabled      bool `yaml:"ocr_enabled"`

	// Region is the AWS region for the OCR backend.
	Region string `yaml:"region"`
}

// ResolveConfig holds the identity-resolution policy constants. The
// boundaries between "same form", "name change", "relocated", and "not
// found" are the main source of classification ambiguity, so they live in
// configuration rather than code.
type ResolveConfig struct {
	// HighSimilarity (0-100): at or above, a candidate is the same form.
	HighSimilarity float64 `yaml:"high_similarity"`

	// LowSimilarity (0-100): below, a candidate is unrelated. Scores in
	// between classify as a name change when the extracted title differs.
	LowSimilarity float64 `yaml:"low_similarity"`

	ListingTimeoutSeconds int `yaml:"listing_timeout_seconds"`
}

// ListingTimeout returns the listing-page fetch deadline.
func (r ResolveConfig) ListingTimeout() time.Duration {
	return time.Duration(r.ListingTimeoutSeconds) * time.Second
}

// CycleConfig tunes cycle execution.
type CycleConfig struct {
	// Workers bounds source-level parallelism within a cycle.
	Workers int `yaml:"workers"`
}

// TitleConfig selects the title/form-number enrichment provider.
type TitleConfig struct {
	Provider string `yaml:"provider"` // "bedrock" or "none"
	Region   string `yaml:"region"`
	ModelID  string `yaml:"model_id"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   ".formwatch/formwatch.db",
		},
		Storage: StorageConfig{
			Backend: "local",
			Root:    ".formwatch/blobs",
		},
		Fetch: FetchConfig{
			TimeoutSeconds:   30,
			QuickHashBytes:   64 * 1024,
			TrustValidators:  false,
			MaxRetries:       2,
			InitialBackoffMS: 500,
			MaxBackoffMS:     5000,
			UserAgent:        "formwatch/1.0",
		},
		Extract: ExtractConfig{
			MinCharsPerPage: 40,
			OCREnabled:      true,
			Region:          "us-east-1",
		},
		Resolve: ResolveConfig{
			HighSimilarity:        80,
			LowSimilarity:         50,
			ListingTimeoutSeconds: 30,
		},
		Cycle: CycleConfig{
			Workers: 4,
		},
		Title: TitleConfig{
			Provider: "none",
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. A missing path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
	); err != nil {
		return err
	}

	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("postgres", "sqlite")),
	); err != nil {
		return err
	}

	if err := validation.ValidateStruct(&c.Storage,
		validation.Field(&c.Storage.Backend, validation.Required, validation.In("local", "s3")),
	); err != nil {
		return err
	}
	if c.Storage.Backend == "s3" {
		if err := validation.ValidateStruct(&c.Storage,
			validation.Field(&c.Storage.Bucket, validation.Required),
			validation.Field(&c.Storage.Region, validation.Required),
		); err != nil {
			return err
		}
	}

	if err := validation.ValidateStruct(&c.Fetch,
		validation.Field(&c.Fetch.TimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.Fetch.QuickHashBytes, validation.Required, validation.Min(1024)),
		validation.Field(&c.Fetch.MaxRetries, validation.Min(0)),
	); err != nil {
		return err
	}

	if err := validation.ValidateStruct(&c.Resolve,
		validation.Field(&c.Resolve.HighSimilarity, validation.Required, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&c.Resolve.LowSimilarity, validation.Required, validation.Min(0.0), validation.Max(100.0)),
	); err != nil {
		return err
	}
	if c.Resolve.LowSimilarity >= c.Resolve.HighSimilarity {
		return fmt.Errorf("resolve.low_similarity (%v) must be below resolve.high_similarity (%v)",
			c.Resolve.LowSimilarity, c.Resolve.HighSimilarity)
	}

	if err := validation.ValidateStruct(&c.Cycle,
		validation.Field(&c.Cycle.Workers, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}

	return validation.ValidateStruct(&c.Title,
		validation.Field(&c.Title.Provider, validation.In("bedrock", "none")),
	)
}
