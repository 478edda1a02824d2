package pipeline

import (
	"context"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pdaviz/pkg/core/build"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/fetch"
	"github.com/matzehuels/pdaviz/pkg/observability"
	"github.com/matzehuels/pdaviz/pkg/viz"
)

// Runner connects the matcher client, the [State] and a [viz.Host].
//
// Runner methods may be called from several goroutines. Responses that are
// superseded by a newer request of the same stream are dropped and the
// method returns nil for them.
type Runner struct {
	client Matcher
	host   *viz.Host
	state  *State
	opts   Options
	logger *log.Logger

	graphs map[replay.Role]*fetch.Guard
	match  *fetch.Guard
	steps  *fetch.Guard
}

// NewRunner creates a runner that mounts into host.
func NewRunner(client Matcher, host *viz.Host, opts Options) *Runner {
	opts = opts.withDefaults()
	graphs := make(map[replay.Role]*fetch.Guard, len(replay.Roles))
	for _, role := range replay.Roles {
		graphs[role] = fetch.NewGuard("graph")
	}
	return &Runner{
		client: client,
		host:   host,
		state:  NewState(),
		opts:   opts,
		logger: opts.Logger,
		graphs: graphs,
		match:  fetch.NewGuard("match"),
		steps:  fetch.NewGuard("step"),
	}
}

// Host returns the host the runner mounts into.
func (r *Runner) Host() *viz.Host { return r.host }

// State returns the shared state.
func (r *Runner) State() *State { return r.state }

// =============================================================================
// Text flow
// =============================================================================

// SetText validates text for role and, if the matcher accepts it, stores
// it, resets the match and reloads the role's graph. Rejected text is not
// stored; the validation message is kept in the state and returned as an
// INVALID_INPUT error.
//
// Validation, storing and the graph fetch share one request of the role's
// graph stream, so a slow validation of older text can never overwrite
// newer text.
func (r *Runner) SetText(ctx context.Context, role replay.Role, text string) error {
	guard := r.graphs[role]
	ctx, tok := guard.Begin(ctx)
	defer guard.End(tok)

	if !r.opts.SkipValidation {
		v, err := r.client.Validate(ctx, text, r.opts.Langs[role])
		if err != nil {
			if fetch.IsStale(err) {
				return nil
			}
			stale := guard.Commit(ctx, tok, func() error {
				r.state.setValidationError(role, errors.UserMessage(err))
				return nil
			})
			if stale != nil {
				return r.report("validate", stale)
			}
			return r.report("validate", err)
		}
		if !v.Valid {
			stale := guard.Commit(ctx, tok, func() error {
				r.state.setValidationError(role, v.Message)
				return nil
			})
			if stale != nil {
				return r.report("validate", stale)
			}
			r.logger.Info("rejected source", "role", role, "message", v.Message)
			return errors.New(errors.ErrCodeInvalidInput, "%s: %s", role, v.Message)
		}
	}

	err := guard.Commit(ctx, tok, func() error {
		r.state.setText(role, text)
		r.match.Cancel()
		r.steps.Cancel()
		r.host.ApplyReplay(replay.DefaultState())
		return nil
	})
	if err != nil {
		return r.report("validate", err)
	}
	return r.load(ctx, role, tok)
}

// Load fetches, builds and mounts the graph of role from the stored text.
// Empty text unmounts the role. Transport failures leave the mounted graphs
// untouched; payload errors abort the cycle with nothing mounted.
func (r *Runner) Load(ctx context.Context, role replay.Role) error {
	guard := r.graphs[role]
	ctx, tok := guard.Begin(ctx)
	defer guard.End(tok)
	return r.load(ctx, role, tok)
}

// load runs one graph cycle for role under an already issued token.
func (r *Runner) load(ctx context.Context, role replay.Role, tok fetch.Token) error {
	guard := r.graphs[role]
	text := r.state.Text(role)
	if text == "" {
		return r.report("graph", guard.Commit(ctx, tok, func() error {
			r.host.Unmount(role)
			return nil
		}))
	}

	payloads, err := r.client.FetchGraph(ctx, role, text)
	if err != nil {
		return r.report("graph", err)
	}
	built, err := build.All(payloads)
	if err != nil {
		return r.report("graph", err)
	}

	err = guard.Commit(ctx, tok, func() error {
		return r.host.Mount(ctx, role, built)
	})
	if err == nil {
		r.logger.Info("mounted", "role", role, "graphs", len(built))
	}
	return r.report("graph", err)
}

// LoadAll loads both roles concurrently and returns the first failure.
func (r *Runner) LoadAll(ctx context.Context) error {
	var g errgroup.Group
	for _, role := range replay.Roles {
		g.Go(func() error { return r.Load(ctx, role) })
	}
	return g.Wait()
}

// Unmount cancels the in-flight graph fetch of role and removes its graphs.
func (r *Runner) Unmount(role replay.Role) {
	r.graphs[role].Cancel()
	r.host.Unmount(role)
}

// =============================================================================
// Match flow
// =============================================================================

// StartMatch asks the matcher to match the stored pattern against the
// stored code, then fetches step 0. Both texts must be present.
func (r *Runner) StartMatch(ctx context.Context) error {
	snap := r.state.Snapshot()
	if !snap.CanStart() {
		return errors.New(errors.ErrCodeInvalidInput, "both code and pattern are required to start a match")
	}

	ctx, tok := r.match.Begin(ctx)
	defer r.match.End(tok)

	res, err := r.client.Match(ctx, snap.Code, snap.Pattern)
	if err != nil {
		if !fetch.IsStale(err) {
			r.state.failMatch(errors.UserMessage(err))
		}
		return r.report("match", err)
	}

	var initial replay.State
	err = r.match.Commit(ctx, tok, func() error {
		r.steps.Cancel()
		initial = r.state.startMatch(res)
		return nil
	})
	if err != nil {
		return r.report("match", err)
	}
	r.logger.Info("match started", "steps", res.Steps, "match_states", len(res.MatchStates))
	r.host.ApplyReplay(initial)

	return r.fetchStep(ctx, 0)
}

// Reset abandons the current match and restores the default coloring.
func (r *Runner) Reset() {
	r.match.Cancel()
	r.steps.Cancel()
	r.state.reset()
	r.host.ApplyReplay(replay.DefaultState())
}

// SetStep moves to step n, clamped to [0, maxStep], and applies its replay
// state to both roles.
func (r *Runner) SetStep(ctx context.Context, n int) error {
	if !r.state.Started() {
		return errors.New(errors.ErrCodeInvalidInput, "no match in progress")
	}
	return r.fetchStep(ctx, r.state.clampStep(n))
}

// First moves to step 0.
func (r *Runner) First(ctx context.Context) error { return r.SetStep(ctx, 0) }

// Prev moves one step back.
func (r *Runner) Prev(ctx context.Context) error { return r.SetStep(ctx, r.state.Step()-1) }

// Next moves one step forward.
func (r *Runner) Next(ctx context.Context) error { return r.SetStep(ctx, r.state.Step()+1) }

// Last moves to the last step.
func (r *Runner) Last(ctx context.Context) error {
	return r.SetStep(ctx, r.state.Snapshot().MaxStep)
}

// NextMatch moves to the next step at which a match completed, wrapping
// around after the last one.
func (r *Runner) NextMatch(ctx context.Context) error {
	step, ok := r.state.nextMatchState()
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "the match has no completed match states")
	}
	return r.SetStep(ctx, step)
}

func (r *Runner) fetchStep(ctx context.Context, n int) error {
	ctx, tok := r.steps.Begin(ctx)
	defer r.steps.End(tok)

	st, err := r.client.Step(ctx, n)
	if err != nil {
		return r.report("step", err)
	}
	err = r.steps.Commit(ctx, tok, func() error {
		r.state.applyStep(st)
		r.host.ApplyReplay(st.State)
		return nil
	})
	if err == nil {
		r.logger.Debug("step applied", "step", n,
			"pattern", st.State.Current.PatternNode, "code", st.State.Current.CodeNode)
	}
	return r.report("step", err)
}

// report logs err by class and forwards user-facing failures to Notify.
// Stale responses are swallowed.
func (r *Runner) report(kind string, err error) error {
	switch {
	case err == nil:
		return nil
	case fetch.IsStale(err):
		if !errors.Is(err, errors.ErrCodeStale) {
			observability.Pipeline().OnFetchStale(context.Background(), kind)
		}
		r.logger.Debug("dropped stale response", "kind", kind)
		return nil
	case errors.IsTransient(err):
		r.logger.Warn("matcher request failed", "kind", kind, "error", err)
		r.state.setError(errors.UserMessage(err))
	default:
		r.logger.Error("request failed", "kind", kind, "error", err)
		r.state.setError(errors.UserMessage(err))
	}
	r.opts.Notify(kind, err)
	return err
}
