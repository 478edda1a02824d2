// Package fetch keeps only the newest response of a request stream.
//
// Text edits and step changes can fire requests faster than the matcher
// answers them. A [Guard] hands every request a monotonically increasing
// [Token] and cancels the request it supersedes; when a response arrives,
// [Guard.Commit] applies it only if its token is still the latest. Late
// responses are dropped with a STALE error and counted through the
// observability hooks.
//
//	ctx, tok := guard.Begin(ctx)
//	defer guard.End(tok)
//	payloads, err := client.FetchGraph(ctx, role, code)
//	if err != nil {
//	    return err
//	}
//	return guard.Commit(ctx, tok, func() error {
//	    return host.Mount(ctx, role, built)
//	})
package fetch

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/observability"
)

// Token identifies one request of a [Guard].
type Token uint64

// Guard serializes a stream of requests of one kind.
type Guard struct {
	kind string

	mu     sync.Mutex
	latest Token
	cancel context.CancelFunc
}

// NewGuard creates a guard. kind names the stream in metrics ("graph",
// "step").
func NewGuard(kind string) *Guard {
	return &Guard{kind: kind}
}

// Kind returns the stream name.
func (g *Guard) Kind() string { return g.kind }

// Begin starts a request. The previous request's context is cancelled and
// its token becomes stale.
func (g *Guard) Begin(ctx context.Context) (context.Context, Token) {
	ctx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	g.latest++
	g.cancel = cancel
	return ctx, g.latest
}

// IsLatest reports whether tok belongs to the newest request.
func (g *Guard) IsLatest(tok Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return tok == g.latest
}

// Latest returns the newest token, or 0 before the first request.
func (g *Guard) Latest() Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest
}

// Commit runs apply if tok is still the newest request. The guard lock is
// held while apply runs, so a newer request cannot be committed in between.
// A superseded token returns a STALE error without calling apply.
func (g *Guard) Commit(ctx context.Context, tok Token, apply func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tok != g.latest {
		observability.Pipeline().OnFetchStale(ctx, g.kind)
		return errors.New(errors.ErrCodeStale, "%s response %d superseded by %d", g.kind, tok, g.latest)
	}
	return apply()
}

// End releases the context of tok if it is still the newest request.
// Superseded requests were already cancelled by [Guard.Begin].
func (g *Guard) End(tok Token) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tok == g.latest && g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// Cancel aborts the in-flight request and makes every issued token stale.
func (g *Guard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.latest++
}

// IsStale reports whether err is a superseded response, either dropped by
// [Guard.Commit] or cut off by the cancellation in [Guard.Begin].
func IsStale(err error) bool {
	return errors.Is(err, errors.ErrCodeStale) || stderrors.Is(err, context.Canceled)
}
