// Package config loads satie settings from a TOML file.
//
// Every field has a default, so a missing config file is not an error for
// the CLI. Values may reference environment variables ($VAR or ${VAR}),
// which are expanded before decoding:
//
//	[cache]
//	backend = "redis"
//	redis_addr = "${REDIS_ADDR}"
//
//	[engraving]
//	chord_base = 24
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/engine"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// Backend names.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config is the complete satie configuration.
type Config struct {
	Engraving engine.Spacing `toml:"engraving"`
	Cache     CacheConfig    `toml:"cache"`
	Store     StoreConfig    `toml:"store"`
	Server    ServerConfig   `toml:"server"`

	// Workers bounds the parallel layout stage.
	Workers   int    `toml:"workers"`
	MaxFixups int    `toml:"max_fixups"`
	Merge     string `toml:"merge"`
}

// CacheConfig selects the layout cache backend.
type CacheConfig struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
}

// StoreConfig selects the score store backend used by satie serve.
type StoreConfig struct {
	Backend  string `toml:"backend"`
	Dir      string `toml:"dir"`
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
}

// ServerConfig configures satie serve.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration written as a string ("24h") in TOML.
type Duration struct{ time.Duration }

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Engraving: engine.DefaultSpacing(),
		Cache: CacheConfig{
			Backend: BackendFile,
			Dir:     defaultCacheDir(),
			TTL:     Duration{7 * 24 * time.Hour},
		},
		Store: StoreConfig{
			Backend:  BackendMemory,
			Dir:      filepath.Join(defaultDataDir(), "scores"),
			Database: "satie",
		},
		Server:    ServerConfig{Addr: ":8080"},
		Workers:   4,
		MaxFixups: engine.DefaultMaxFixups,
		Merge:     string(engine.StrategyTwoPass),
	}
}

// Load reads path over the defaults and validates the result. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read config")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if _, err := toml.Decode(os.ExpandEnv(string(data)), cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "config validation failed")
	}
	return cfg, nil
}

// LoadDefault loads the file at DefaultPath if it exists, and the
// defaults otherwise.
func LoadDefault() (*Config, error) {
	path := DefaultPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// DefaultPath returns $XDG_CONFIG_HOME/satie/config.toml.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "satie", "config.toml")
}

func defaultCacheDir() string {
	if base := os.Getenv("XDG_CACHE_HOME"); base != "" {
		return filepath.Join(base, "satie")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "satie")
}

func defaultDataDir() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, "satie")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "satie")
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(256)),
		validation.Field(&c.MaxFixups, validation.Required, validation.Min(1)),
		validation.Field(&c.Merge, validation.Required,
			validation.In(string(engine.StrategyTwoPass), string(engine.StrategyLongestPath))),
	); err != nil {
		return err
	}
	if err := validateSpacing(&c.Engraving); err != nil {
		return fmt.Errorf("engraving: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return c.Server.Validate()
}

// Validate checks the cache section.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendNone, BackendFile, BackendRedis)),
		validation.Field(&c.Dir, validation.When(c.Backend == BackendFile, validation.Required)),
		validation.Field(&c.RedisAddr, validation.When(c.Backend == BackendRedis, validation.Required)),
	)
}

// Validate checks the store section.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendFile, BackendMongo)),
		validation.Field(&c.Dir, validation.When(c.Backend == BackendFile, validation.Required)),
		validation.Field(&c.MongoURI, validation.When(c.Backend == BackendMongo, validation.Required)),
		validation.Field(&c.Database, validation.When(c.Backend == BackendMongo, validation.Required)),
	)
}

// Validate checks the server section.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
	)
}

func validateSpacing(s *engine.Spacing) error {
	positive := []validation.Rule{validation.Required, validation.Min(0.0)}
	return validation.ValidateStruct(s,
		validation.Field(&s.ChordBase, positive...),
		validation.Field(&s.GraceChordBase, positive...),
		validation.Field(&s.MergeNudge, validation.Min(0.0)),
		validation.Field(&s.EndPadding, validation.Min(0.0)),
		validation.Field(&s.LogSpring, validation.Min(0.0)),
		validation.Field(&s.DotWidth, validation.Min(0.0)),
		validation.Field(&s.AccidentalWidth, validation.Min(0.0)),
		validation.Field(&s.BarlineRegular, validation.Min(0.0)),
		validation.Field(&s.BarlineDouble, validation.Min(0.0)),
		validation.Field(&s.BarlineFinal, validation.Min(0.0)),
		validation.Field(&s.SenzaMisuraBeat, validation.Required, validation.Min(1)),
	)
}
