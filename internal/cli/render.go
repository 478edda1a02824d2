package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	role       string   // "pattern" or "code"
	output     string   // output directory
	formats    []string // output formats: "png", "svg", "html", "json"
	collapse   []string // tree node IDs folded before rendering
	edgeLabels bool     // label automaton edges
	noCache    bool     // bypass the artifact cache
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr, collapseStr string
	opts := renderOpts{role: replay.RoleCode.String(), output: "."}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render the graphs of a source file",
		Long: `Render fetches the graphs of a code or pattern file from the matcher, lays
them out and writes one file per sub-graph and format, named {label}.{ext}.

Use "-" to read the source from stdin.`,
		Example: `  pdaviz render --role code example.py -f png,svg -o out/
  pdaviz render --role pattern rule.pyt -f html --collapse 3,7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			opts.collapse = parseIDs(collapseStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.role, "role", "r", opts.role, "source role: code or pattern")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output directory")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): png (default), svg, html, json (comma-separated)")
	cmd.Flags().StringVar(&collapseStr, "collapse", "", "tree node IDs to fold before rendering (comma-separated)")
	cmd.Flags().BoolVar(&opts.edgeLabels, "edge-labels", false, "label automaton edges with their transitions")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	logger := loggerFromContext(ctx)

	role, err := replay.ParseRole(opts.role)
	if err != nil {
		return err
	}
	text, err := readSource(input)
	if err != nil {
		return err
	}

	runner, closeCache, err := c.newRunner(ctx, runnerOpts{noCache: opts.noCache, edgeLabels: opts.edgeLabels})
	if err != nil {
		return err
	}
	defer closeCache()

	logger.Info("rendering", "file", input, "role", role, "matcher", c.Config.Matcher.URL)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", filepath.Base(input)))
	spinner.Start()
	result, err := runner.Render(ctx, role, text, pipeline.RenderOptions{
		Formats:  opts.formats,
		Collapse: opts.collapse,
	})
	spinner.Stop()
	if err != nil {
		return err
	}

	paths, err := writeArtifacts(opts.output, result.Artifacts)
	if err != nil {
		return err
	}

	printSuccess("Rendered %d %s graph(s)", result.Stats.Graphs, role)
	for _, p := range paths {
		printFile(p)
	}
	printStats(result.Stats)
	return nil
}

// writeArtifacts writes every artifact into dir and returns the paths written.
// Labels that are unsafe as file names are rejected.
func writeArtifacts(dir string, artifacts []pipeline.Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := errors.ValidateLabel(a.Label); err != nil {
			return paths, err
		}
		path := filepath.Join(dir, a.Filename)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
