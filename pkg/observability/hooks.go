// Package observability provides hooks for metrics and logging.
//
// Libraries emit events through package-level hook registries; the binary
// decides what receives them. The defaults are no-ops, so library code never
// depends on a metrics backend. [Prometheus] is the backend pdaviz ships.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    prom := observability.NewPrometheus(prometheus.DefaultRegisterer)
//	    prom.Install()
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	observability.Pipeline().OnFetchStart(ctx, "graph")
//	// ... do fetch ...
//	observability.Pipeline().OnFetchComplete(ctx, "graph", time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the fetch, layout and render stages.
//
// The fetch kind is one of "graph", "match", "step" or "validate".
type PipelineHooks interface {
	// Fetch events
	OnFetchStart(ctx context.Context, kind string)
	OnFetchComplete(ctx context.Context, kind string, duration time.Duration, err error)
	// OnFetchStale records a response dropped because a newer request superseded it.
	OnFetchStale(ctx context.Context, kind string)

	// Layout events
	OnLayoutComplete(ctx context.Context, mode string, nodeCount, subLayouts int, duration time.Duration, err error)

	// Render events
	OnRenderComplete(ctx context.Context, format string, size int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// Server Hooks
// =============================================================================

// ServerHooks receives events from the live view server.
type ServerHooks interface {
	// OnServe records a handled request by route pattern and status code.
	OnServe(ctx context.Context, route string, status int, duration time.Duration)

	// OnClients records the number of connected websocket clients.
	OnClients(n int)

	// OnPush records a websocket message; dropped is true when a slow client
	// missed it.
	OnPush(msgType string, dropped bool)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnFetchStart(context.Context, string)                                     {}
func (NoopPipelineHooks) OnFetchComplete(context.Context, string, time.Duration, error)            {}
func (NoopPipelineHooks) OnFetchStale(context.Context, string)                                     {}
func (NoopPipelineHooks) OnLayoutComplete(context.Context, string, int, int, time.Duration, error) {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, string, int, time.Duration, error)      {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// NoopServerHooks is a no-op implementation of ServerHooks.
type NoopServerHooks struct{}

func (NoopServerHooks) OnServe(context.Context, string, int, time.Duration) {}
func (NoopServerHooks) OnClients(int)                                       {}
func (NoopServerHooks) OnPush(string, bool)                                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

// slot holds one registered hook set and its no-op default.
type slot[T any] struct {
	mu  sync.RWMutex
	cur T
	def T
}

func newSlot[T any](def T) *slot[T] {
	return &slot[T]{cur: def, def: def}
}

func (s *slot[T]) get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *slot[T]) set(h T, isNil bool) {
	if isNil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = h
}

func (s *slot[T]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = s.def
}

var (
	pipelineHooks = newSlot[PipelineHooks](NoopPipelineHooks{})
	cacheHooks    = newSlot[CacheHooks](NoopCacheHooks{})
	httpHooks     = newSlot[HTTPHooks](NoopHTTPHooks{})
	serverHooks   = newSlot[ServerHooks](NoopServerHooks{})
)

// SetPipelineHooks registers custom pipeline hooks. Nil is ignored.
// Call it at startup, before any pipeline operation.
func SetPipelineHooks(h PipelineHooks) { pipelineHooks.set(h, h == nil) }

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) { cacheHooks.set(h, h == nil) }

// SetHTTPHooks registers custom HTTP client hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) { httpHooks.set(h, h == nil) }

// SetServerHooks registers custom server hooks. Nil is ignored.
func SetServerHooks(h ServerHooks) { serverHooks.set(h, h == nil) }

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks { return pipelineHooks.get() }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return cacheHooks.get() }

// HTTP returns the registered HTTP client hooks.
func HTTP() HTTPHooks { return httpHooks.get() }

// Server returns the registered server hooks.
func Server() ServerHooks { return serverHooks.get() }

// Reset restores all hooks to their no-op defaults.
func Reset() {
	pipelineHooks.reset()
	cacheHooks.reset()
	httpHooks.reset()
	serverHooks.reset()
}
