package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/matzehuels/pdaviz/pkg/core/collapse"
	"github.com/matzehuels/pdaviz/pkg/core/model"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
)

// RenderOptions selects what [Runner.Render] produces.
type RenderOptions struct {
	// Formats lists the output formats; empty means PNG only.
	Formats []string
	// Collapse lists tree node IDs to fold before rendering. IDs missing
	// from a sub-graph, and automata, are skipped.
	Collapse []string
}

// Artifact is one rendered sub-graph.
type Artifact struct {
	Label    string
	Format   string
	Filename string
	Data     []byte
}

// Result contains the outputs of a render run.
type Result struct {
	Artifacts []Artifact
	Stats     Stats
}

// Stats contains render run statistics.
type Stats struct {
	Graphs     int
	LoadTime   time.Duration
	RenderTime time.Duration
}

// Render loads text for role and renders every sub-graph in every requested
// format. The visible sub-graph is restored afterwards.
func (r *Runner) Render(ctx context.Context, role replay.Role, text string, opts RenderOptions) (*Result, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{FormatPNG}
	}
	if err := ValidateFormats(formats); err != nil {
		return nil, err
	}

	loadStart := time.Now()
	if err := r.SetText(ctx, role, text); err != nil {
		return nil, err
	}
	labels := r.host.Labels(role)
	if len(labels) == 0 {
		return nil, fmt.Errorf("matcher returned no %s graphs", role)
	}
	result := &Result{Stats: Stats{Graphs: len(labels), LoadTime: time.Since(loadStart)}}

	visible := ""
	if f, err := r.host.Snapshot(role); err == nil {
		visible = f.Label
	}
	defer func() {
		if visible != "" {
			_ = r.host.SwitchVisible(role, visible)
		}
	}()

	renderStart := time.Now()
	for _, label := range labels {
		if err := r.host.SwitchVisible(role, label); err != nil {
			return nil, err
		}
		if err := r.collapseAll(ctx, role, opts.Collapse); err != nil {
			return nil, fmt.Errorf("collapse %s: %w", label, err)
		}
		for _, format := range formats {
			data, name, err := r.host.Export(ctx, role, format)
			if err != nil {
				return nil, err
			}
			result.Artifacts = append(result.Artifacts, Artifact{
				Label:    label,
				Format:   format,
				Filename: name,
				Data:     data,
			})
		}
	}
	result.Stats.RenderTime = time.Since(renderStart)

	r.logger.Info("rendered outputs",
		"role", role,
		"graphs", len(labels),
		"formats", formats,
		"duration", result.Stats.RenderTime)
	return result, nil
}

func (r *Runner) collapseAll(ctx context.Context, role replay.Role, ids []string) error {
	for _, id := range ids {
		_, err := r.host.Click(ctx, role, id)
		switch {
		case err == nil:
		case stderrors.Is(err, collapse.ErrNotCollapsible):
			return nil
		case stderrors.Is(err, model.ErrUnknownNode), stderrors.Is(err, collapse.ErrHidden):
			r.logger.Debug("skipped collapse", "role", role, "node", id, "reason", err)
		default:
			return err
		}
	}
	return nil
}
