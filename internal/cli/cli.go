package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/jocelyn-stericker/satie-sub004/pkg/cache"
	"github.com/jocelyn-stericker/satie-sub004/pkg/config"
	"github.com/jocelyn-stericker/satie-sub004/pkg/pipeline"
	"github.com/jocelyn-stericker/satie-sub004/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "satie"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Status receives transient progress output such as spinners. Nil
	// discards it.
	Status io.Writer

	// ConfigPath overrides the default config location when set.
	ConfigPath string

	cfg *config.Config
}

// New creates a CLI that logs and shows progress on w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), Status: w}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// config loads the configuration once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if c.ConfigPath != "" {
		cfg, err = config.Load(c.ConfigPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	ch, err := newCache(ctx, cfg.Cache, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(ch, nil, c.Logger), nil
}

// newCache opens the configured cache backend. A file cache that cannot be
// created degrades to no caching.
func newCache(ctx context.Context, cfg config.CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("connect to redis cache: %w", err)
		}
		return rc, nil
	default:
		fc, err := cache.NewFileCache(cfg.Dir)
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return fc, nil
	}
}

// newStore opens the configured score store.
func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		s, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo store: %w", err)
		}
		return s, nil
	case config.BackendFile:
		return store.NewFileStore(cfg.Dir)
	default:
		return store.NewMemoryStore(), nil
	}
}

// =============================================================================
// Options Helpers
// =============================================================================

// pipelineOptions builds pipeline options from the configuration.
func (c *CLI) pipelineOptions() (pipeline.Options, error) {
	cfg, err := c.config()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Merge:     cfg.Merge,
		Workers:   cfg.Workers,
		MaxFixups: cfg.MaxFixups,
		Spacing:   cfg.Engraving,
		Logger:    c.Logger,
	}, nil
}
