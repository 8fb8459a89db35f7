// Package base carries the shared state and wiring every CLI command needs:
// UI, logger, config loading, and construction of the monitoring engine from
// configuration.
package base

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"gorm.io/gorm"

	"github.com/formwatch/formwatch/internal/config"
	"github.com/formwatch/formwatch/internal/monitor"
	"github.com/formwatch/formwatch/pkg/database"
	"github.com/formwatch/formwatch/pkg/extract"
	"github.com/formwatch/formwatch/pkg/fetch"
	"github.com/formwatch/formwatch/pkg/resolve"
	"github.com/formwatch/formwatch/pkg/storage"
)

// Command is embedded by every subcommand.
type Command struct {
	UI  cli.Ui
	Log hclog.Logger

	flagConfig string
}

// FlagSet returns a flag set preloaded with the flags common to all
// commands.
func (c *Command) FlagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.StringVar(&c.flagConfig, "config", "", "Path to the configuration file")
	return f
}

// LoadConfig reads the configured (or default) configuration.
func (c *Command) LoadConfig() (*config.Config, error) {
	return config.Load(c.flagConfig)
}

// Engine builds the monitoring engine from configuration: database, blob
// store, tiered fetcher, extraction pipeline, and title provider.
func (c *Command) Engine(ctx context.Context) (*monitor.Engine, *gorm.DB, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	log := c.Log
	if level := hclog.LevelFromString(cfg.LogLevel); level != hclog.NoLevel {
		log.SetLevel(level)
	}

	db, err := database.Connect(database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Path:     cfg.Database.Path,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	blobs, err := c.blobStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	fetcher := fetch.NewHTTPFetcher(fetch.HTTPFetcherConfig{
		Client:    &http.Client{Timeout: cfg.Fetch.Timeout()},
		UserAgent: cfg.Fetch.UserAgent,
		Logger:    log,
	})
	planner := fetch.NewPlanner(fetcher, fetch.PlannerConfig{
		QuickHashBytes:  cfg.Fetch.QuickHashBytes,
		TrustValidators: cfg.Fetch.TrustValidators,
		Retry: fetch.RetryPolicy{
			MaxRetries:     cfg.Fetch.MaxRetries,
			InitialBackoff: cfg.Fetch.InitialBackoff(),
			MaxBackoff:     cfg.Fetch.MaxBackoff(),
		},
		Logger: log,
	})

	var ocr extract.OCRFallback
	if cfg.Extract.OCREnabled {
		textract, err := extract.NewTextractOCR(ctx, extract.TextractConfig{
			Region: cfg.Extract.Region,
		}, log)
		if err != nil {
			log.Warn("OCR backend unavailable, continuing without it", "error", err)
		} else {
			ocr = textract
		}
	}
	pipeline := extract.NewPipeline(extract.PipelineConfig{
		MinCharsPerPage: cfg.Extract.MinCharsPerPage,
		OCR:             ocr,
		Logger:          log,
	})

	titles, err := c.titleExtractor(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	engine := monitor.New(monitor.Options{
		DB:       db,
		Blobs:    blobs,
		Fetcher:  fetcher,
		Planner:  planner,
		Pipeline: pipeline,
		Titles:   titles,
		ResolverConfig: resolve.Config{
			HighSimilarity: cfg.Resolve.HighSimilarity,
			LowSimilarity:  cfg.Resolve.LowSimilarity,
		},
		Workers: cfg.Cycle.Workers,
		Logger:  log,
	})
	return engine, db, nil
}

func (c *Command) blobStore(ctx context.Context, cfg *config.Config, log hclog.Logger) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		s3cfg := &storage.S3Config{
			Endpoint:              cfg.Storage.Endpoint,
			Region:                cfg.Storage.Region,
			Bucket:                cfg.Storage.Bucket,
			Prefix:                cfg.Storage.Prefix,
			AccessKey:             cfg.Storage.AccessKey,
			SecretKey:             cfg.Storage.SecretKey,
			RequestTimeoutSeconds: cfg.Fetch.TimeoutSeconds,
		}
		return storage.NewS3Store(ctx, s3cfg, log)
	default:
		return storage.NewLocalStore(nil, cfg.Storage.Root, log)
	}
}

func (c *Command) titleExtractor(ctx context.Context, cfg *config.Config, log hclog.Logger) (extract.TitleExtractor, error) {
	if cfg.Title.Provider != "bedrock" {
		return extract.NewHeuristicTitleExtractor(), nil
	}
	bedrockCfg := extract.DefaultBedrockConfig()
	if cfg.Title.Region != "" {
		bedrockCfg.Region = cfg.Title.Region
	}
	if cfg.Title.ModelID != "" {
		bedrockCfg.ModelID = cfg.Title.ModelID
	}
	return extract.NewBedrockTitleExtractor(ctx, bedrockCfg, log)
}
