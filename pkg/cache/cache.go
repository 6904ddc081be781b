// Package cache stores laid-out measures and documents between runs.
//
// Layout of a measure is a pure function of the measure's content, the
// attributes it inherits, the accidentals carried over from the previous
// measure and the engraving settings. [Keyer] turns those inputs into a
// stable key so a [Cache] can skip recomputing measures that did not change.
//
// Three backends are provided: [FileCache] for the CLI, [RedisCache] for a
// shared server cache, and [NullCache] to disable caching.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Default lifetimes.
const (
	MeasureTTL  = 7 * 24 * time.Hour
	DocumentTTL = 24 * time.Hour
)

// MeasureKeyOpts are the inputs besides the measure itself that affect its
// layout.
type MeasureKeyOpts struct {
	// Context fingerprints the inherited attributes, print state and
	// previous staff states.
	Context     string `json:"context"`
	Shortest    int    `json:"shortest"`
	Merge       string `json:"merge"`
	Spacing     string `json:"spacing"`
	Approximate bool   `json:"approximate"`
}

// DocumentKeyOpts are the settings that affect a whole-document layout.
type DocumentKeyOpts struct {
	Merge   string `json:"merge"`
	Spacing string `json:"spacing"`
}

// Keyer builds cache keys.
type Keyer interface {
	// MeasureKey keys the layout of one measure by its content hash.
	MeasureKey(measureHash string, opts MeasureKeyOpts) string
	// DocumentKey keys the layout of a whole document by its content hash.
	DocumentKey(documentHash string, opts DocumentKeyOpts) string
}

// DefaultKeyer hashes every input into the key.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// MeasureKey implements Keyer.
func (DefaultKeyer) MeasureKey(measureHash string, opts MeasureKeyOpts) string {
	return hashKey("measure", measureHash, opts)
}

// DocumentKey implements Keyer.
func (DefaultKeyer) DocumentKey(documentHash string, opts DocumentKeyOpts) string {
	return hashKey("document", documentHash, opts)
}
