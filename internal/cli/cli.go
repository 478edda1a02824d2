// Package cli implements the pdaviz command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pdaviz/pkg/buildinfo"
	"github.com/matzehuels/pdaviz/pkg/cache"
	"github.com/matzehuels/pdaviz/pkg/config"
	"github.com/matzehuels/pdaviz/pkg/core/layout"
	"github.com/matzehuels/pdaviz/pkg/core/render/nodelink"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/matcher"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
	"github.com/matzehuels/pdaviz/pkg/viz"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "pdaviz"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config config.Config

	configPath string
	matcherURL string
}

// New creates a new CLI instance with a default logger and the built-in
// configuration. The config file is read before each command runs.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pdaviz visualizes pattern matching as pushdown automaton replays",
		Long: `pdaviz renders the syntax trees and automata of a code/pattern pair
served by a matcher backend, and replays the match step by step.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/pdaviz/config.toml)")
	root.PersistentFlags().StringVar(&c.matcherURL, "matcher", "", "matcher base URL (overrides config)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.replayCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file, applies global flag overrides and
// attaches the logger to the command context.
func (c *CLI) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.matcherURL != "" {
		cfg.Matcher.URL = c.matcherURL
	}
	c.Config = cfg
	if cfg.Path != "" {
		c.Logger.Debug("loaded config", "path", cfg.Path)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// runnerOpts tweaks the runner built by newRunner.
type runnerOpts struct {
	noCache    bool
	edgeLabels bool
	keyer      cache.Keyer
	notify     func(kind string, err error)
}

// newRunner creates a pipeline runner wired to the configured matcher,
// artifact cache and view settings. The returned function releases the cache.
func (c *CLI) newRunner(ctx context.Context, opts runnerOpts) (*pipeline.Runner, func(), error) {
	client, err := c.newMatcher()
	if err != nil {
		return nil, nil, err
	}
	store, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return nil, nil, err
	}

	host := viz.NewHost(c.hostOptions(store, opts))
	runner := pipeline.NewRunner(client, host, pipeline.Options{
		Langs: map[replay.Role]string{
			replay.RoleCode:    c.Config.Matcher.CodeLang,
			replay.RolePattern: c.Config.Matcher.PatternLang,
		},
		Notify: opts.notify,
		Logger: c.Logger,
	})
	return runner, func() { store.Close() }, nil
}

func (c *CLI) newMatcher() (*matcher.Client, error) {
	return matcher.New(c.Config.Matcher.URL,
		matcher.WithTimeout(c.Config.Matcher.Timeout.Duration),
		matcher.WithHeaders(map[string]string{"User-Agent": buildinfo.UserAgent()}),
	)
}

func (c *CLI) hostOptions(store cache.Cache, opts runnerOpts) viz.Options {
	view := c.Config.View
	return viz.Options{
		Layout:           layout.Options{Placer: placerFor(view.Placer)},
		Render:           nodelink.Options{EdgeLabels: view.EdgeLabels || opts.edgeLabels},
		ControlBarHeight: view.ControlBarHeight,
		FitPadding:       view.Padding,
		Follow: map[replay.Role]bool{
			replay.RolePattern: view.FollowPattern,
			replay.RoleCode:    view.FollowCode,
		},
		Resize:   viz.NewResizeService(layout.Size{Width: view.Width, Height: view.Height}),
		Cache:    store,
		CacheTTL: c.Config.Cache.TTL.Duration,
		Keyer:    opts.keyer,
		Logger:   c.Logger,
	}
}

// placerFor maps a config placer name to a layout placer. Unknown names
// select the default.
func placerFor(name string) layout.Placer {
	if name == config.PlacerGraphviz {
		return layout.Graphviz{}
	}
	return nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.Disabled(), nil
	}
	opts, err := c.cacheOptions()
	if err != nil {
		return cache.Disabled(), nil
	}
	return cache.Open(ctx, opts)
}

func (c *CLI) cacheOptions() (cache.Options, error) {
	cfg := c.Config.Cache
	opts := cache.Options{
		Backend: cfg.Backend,
		Dir:     cfg.Dir,
		Redis:   cache.RedisConfig{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Mongo:   cache.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB},
	}
	if opts.Dir == "" && (opts.Backend == "" || opts.Backend == cache.BackendFile) {
		dir, err := cacheDir()
		if err != nil {
			return opts, err
		}
		opts.Dir = filepath.Join(dir, "artifacts")
	}
	return opts, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pdaviz/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// readSource reads a source file; "-" reads stdin.
func readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{pipeline.FormatPNG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseIDs parses a comma-separated node ID list.
func parseIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
