// Package cache stores rendered artifacts keyed by content hash.
//
// Rendering a frame to PNG or SVG runs Graphviz, which dominates the cost of
// an export. The rendered bytes depend only on the DOT source and the output
// format, so they are cached under [Keyer.ArtifactKey]. Matcher responses are
// never cached: they change with every edit.
//
// Backends:
//   - [FileCache]: JSON files under the user cache dir (CLI default)
//   - [RedisCache]: shared cache for several serve instances
//   - [MongoCache]: document store with a TTL index
//   - [Disabled]: caching off
//
// Use [Open] to pick a backend from configuration, and [Instrument] to report
// hits and misses through the observability hooks.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true on a hit. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend connections.
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// =============================================================================
// Keys
// =============================================================================

// ArtifactKeyOpts are the render options that change the artifact bytes.
type ArtifactKeyOpts struct {
	Format     string `json:"format"`
	EdgeLabels bool   `json:"edge_labels"`
}

// Keyer builds cache keys.
type Keyer interface {
	// ArtifactKey returns the key for a rendered artifact of the given source.
	ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer produces unscoped keys of the form "artifact:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ArtifactKey implements [Keyer].
func (DefaultKeyer) ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string {
	return digestKey("artifact", sourceHash, opts)
}

// ArtifactTTL is the default lifetime of a rendered artifact.
const ArtifactTTL = 7 * 24 * time.Hour
