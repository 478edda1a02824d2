package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/pdaviz/pkg/observability"
)

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Options selects and configures a backend.
type Options struct {
	Backend string // default BackendFile
	Dir     string // file backend; empty selects DefaultDir
	Redis   RedisConfig
	Mongo   MongoConfig
}

// Open creates the configured cache wrapped with [Instrument].
func Open(ctx context.Context, opts Options) (Cache, error) {
	var (
		c   Cache
		err error
	)
	switch opts.Backend {
	case "", BackendFile:
		c, err = NewFileCache(opts.Dir)
	case BackendRedis:
		c, err = NewRedisCache(ctx, opts.Redis)
	case BackendMongo:
		c, err = NewMongoCache(ctx, opts.Mongo)
	case BackendNone:
		c = Disabled()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", opts.Backend, err)
	}
	return Instrument(c, "artifact"), nil
}

// disabled backs BackendNone and --no-cache: reads miss, writes are dropped.
type disabled struct{}

// Disabled returns a cache that never stores anything, so every export
// renders through Graphviz.
func Disabled() Cache { return disabled{} }

func (disabled) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (disabled) Delete(context.Context, string) error { return nil }
func (disabled) Close() error { return nil }
func (disabled) Clear(context.Context) error { return nil }

// Instrumented reports hits, misses and writes of an inner cache to the
// observability cache hooks.
type Instrumented struct {
	Cache
	keyType string
}

// Instrument wraps c. keyType labels the emitted events.
func Instrument(c Cache, keyType string) *Instrumented {
	return &Instrumented{Cache: c, keyType: keyType}
}

// Get implements [Cache].
func (c *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := c.Cache.Get(ctx, key)
	switch {
	case err != nil:
	case ok:
		observability.Cache().OnCacheHit(ctx, c.keyType)
	default:
		observability.Cache().OnCacheMiss(ctx, c.keyType)
	}
	return data, ok, err
}

// Set implements [Cache].
func (c *Instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.Cache.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, c.keyType, len(data))
	return nil
}

// Clear forwards to the inner cache when it supports clearing.
func (c *Instrumented) Clear(ctx context.Context) error {
	if cl, ok := c.Cache.(Clearer); ok {
		return cl.Clear(ctx)
	}
	return nil
}

// Unwrap returns the inner cache.
func (c *Instrumented) Unwrap() Cache { return c.Cache }

// GetOrCompute returns the cached value for key, or computes, stores and
// returns it. Cache errors are not fatal: a failed read computes, a failed
// write still returns the computed value.
func GetOrCompute(ctx context.Context, c Cache, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok, err := c.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}
	data, err := compute()
	if err != nil {
		return nil, false, err
	}
	_ = c.Set(ctx, key, data, ttl)
	return data, false, nil
}
