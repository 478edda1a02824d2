package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/observability"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
	"github.com/matzehuels/pdaviz/pkg/server"
	"github.com/matzehuels/pdaviz/pkg/watch"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	code    string
	pattern string
	addr    string
	noWatch bool
	noCache bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live views of a code/pattern pair",
		Long: `Serve keeps the graphs of a code file and a pattern file mounted and serves
them over HTTP: HTML views, image export, JSON frames, match stepping and a
websocket that pushes every change.

Both files are watched; saving either one reloads its graph.`,
		Example: `  pdaviz serve --code example.py --pattern rule.pyt
  pdaviz serve --code example.py --pattern rule.pyt --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.code, "code", "", "code file")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "pattern file")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload files on change")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("pattern")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	metrics := observability.NewPrometheus(nil)
	metrics.Install()
	defer observability.Reset()

	runner, closeCache, err := c.newRunner(ctx, runnerOpts{
		noCache: opts.noCache,
		notify: func(kind string, err error) {
			logger.Warn("request failed", "kind", kind, "error", err)
		},
	})
	if err != nil {
		return err
	}
	defer closeCache()

	files, err := sourceFiles(opts.code, opts.pattern)
	if err != nil {
		return err
	}
	for path, role := range files {
		loadFile(ctx, runner, role, path)
	}

	if !opts.noWatch {
		paths := make([]string, 0, len(files))
		for p := range files {
			paths = append(paths, p)
		}
		w, err := watch.New(paths, func(changed []string) {
			for _, p := range changed {
				if role, ok := files[p]; ok {
					loadFile(ctx, runner, role, p)
				}
			}
		}, watch.Options{Debounce: c.Config.Watch.Debounce.Duration, Logger: logger})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
		logger.Info("watching", "files", w.Files())
	}

	addr := opts.addr
	if addr == "" {
		addr = c.Config.Server.Addr
	}
	srv := server.New(runner, server.Options{
		Addr:    addr,
		Metrics: metrics.Handler(),
		Logger:  logger,
	})
	defer srv.Close()

	printSuccess("Serving on %s", StyleLink.Render("http://"+srv.Addr()))
	printKeyValue("Pattern view", "http://"+srv.Addr()+"/view/pattern")
	printKeyValue("Code view", "http://"+srv.Addr()+"/view/code")
	printKeyValue("Metrics", "http://"+srv.Addr()+"/metrics")
	return srv.ListenAndServe(ctx)
}

// sourceFiles maps the absolute path of each source file to its role.
func sourceFiles(code, pattern string) (map[string]replay.Role, error) {
	files := make(map[string]replay.Role, 2)
	for role, p := range map[replay.Role]string{replay.RoleCode: code, replay.RolePattern: pattern} {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("%s file: %w", role, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("%s file: %w", role, err)
		}
		files[abs] = role
	}
	if len(files) != 2 {
		return nil, fmt.Errorf("code and pattern must be different files")
	}
	return files, nil
}

// loadFile reads path and hands it to the runner. Failures are logged; the
// previous graph stays mounted.
func loadFile(ctx context.Context, runner *pipeline.Runner, role replay.Role, path string) {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	text, err := readSource(path)
	if err != nil {
		logger.Error("read failed", "role", role, "error", err)
		return
	}
	if err := runner.SetText(ctx, role, text); err != nil {
		logger.Warn("not loaded", "role", role, "file", filepath.Base(path), "error", err)
		return
	}
	prog.done("Loaded %s %s, %d graph(s)", role, filepath.Base(path), len(runner.Host().Labels(role)))
}
