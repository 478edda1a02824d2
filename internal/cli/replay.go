package cli

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pdaviz/pkg/cache"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
	"github.com/matzehuels/pdaviz/pkg/session"
)

// replayOpts holds the command-line flags for the replay command.
type replayOpts struct {
	code    string
	pattern string
	resume  bool
	noCache bool
}

// replayCommand creates the replay command.
func (c *CLI) replayCommand() *cobra.Command {
	var opts replayOpts

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Step through a match interactively",
		Long: `Replay matches a pattern file against a code file and steps through the
pushdown automaton trace in the terminal.

The last step is saved when the replay ends; --resume restores it for the
same pair of files.`,
		Example: `  pdaviz replay --code example.py --pattern rule.pyt
  pdaviz replay --code example.py --pattern rule.pyt --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReplay(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.code, "code", "", "code file")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "pattern file")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "resume at the step saved for these files")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("pattern")

	return cmd
}

func (c *CLI) runReplay(ctx context.Context, opts replayOpts) error {
	logger := loggerFromContext(ctx)

	codeText, err := readSource(opts.code)
	if err != nil {
		return err
	}
	patternText, err := readSource(opts.pattern)
	if err != nil {
		return err
	}

	store, err := session.NewFileStore("")
	if err != nil {
		return fmt.Errorf("open sessions: %w", err)
	}
	if err := store.Cleanup(ctx); err != nil {
		logger.Debug("session cleanup failed", "error", err)
	}

	sess, resumed, err := c.loadSession(ctx, store, opts)
	if err != nil {
		return err
	}

	runner, closeCache, err := c.newRunner(ctx, runnerOpts{
		noCache: opts.noCache,
		keyer:   cache.NewScopedKeyer(nil, "session:"+sess.ID+":"),
	})
	if err != nil {
		return err
	}
	defer closeCache()

	spinner := newSpinnerWithContext(ctx, "Matching...")
	spinner.Start()
	err = c.startReplay(ctx, runner, codeText, patternText)
	if err == nil && resumed && sess.Step > 0 {
		spinner.Update(fmt.Sprintf("Restoring step %d...", sess.Step))
		err = runner.SetStep(ctx, sess.Step)
	}
	spinner.Stop()
	if err != nil {
		return err
	}
	logger.Debug("match started", "session", sess.ID, "steps", runner.State().Snapshot().MaxStep)

	final, err := tea.NewProgram(NewReplayModel(ctx, runner, hostLabeler(runner.Host())), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("replay: %w", err)
	}

	step := runner.State().Step()
	if m, ok := final.(ReplayModel); ok {
		step = m.Step()
	}
	sess.Touch(step, session.DefaultTTL)
	if err := store.Set(context.WithoutCancel(ctx), sess); err != nil {
		logger.Warn("could not save session", "error", err)
		return nil
	}
	printSuccess("Stopped at step %d", step)
	printNextStep("Resume with", fmt.Sprintf("%s replay --code %s --pattern %s --resume", appName, opts.code, opts.pattern))
	return nil
}

// loadSession returns the saved session for the file pair when resuming, or
// a new one.
func (c *CLI) loadSession(ctx context.Context, store session.Store, opts replayOpts) (*session.Session, bool, error) {
	if opts.resume {
		codePath, err := session.NormalizePath(opts.code)
		if err != nil {
			return nil, false, err
		}
		patternPath, err := session.NormalizePath(opts.pattern)
		if err != nil {
			return nil, false, err
		}
		sess, err := store.Find(ctx, codePath, patternPath)
		if err != nil {
			return nil, false, err
		}
		if sess != nil {
			printInfo("Resuming at step %d", sess.Step)
			return sess, true, nil
		}
		printWarning("No saved replay for these files, starting over")
	}
	sess, err := session.New(opts.code, opts.pattern, session.DefaultTTL)
	return sess, false, err
}

// startReplay stores both texts and starts the match.
func (c *CLI) startReplay(ctx context.Context, runner *pipeline.Runner, code, pattern string) error {
	if err := runner.SetText(ctx, replay.RoleCode, code); err != nil {
		return fmt.Errorf("code: %w", err)
	}
	if err := runner.SetText(ctx, replay.RolePattern, pattern); err != nil {
		return fmt.Errorf("pattern: %w", err)
	}
	return runner.StartMatch(ctx)
}
