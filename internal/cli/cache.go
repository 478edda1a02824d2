package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pdaviz/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached artifacts",
		Long: `Clear drops every rendered artifact from the configured cache backend
(file, redis or mongo).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.cacheOptions()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			if opts.Backend == cache.BackendNone {
				printInfo("Cache is disabled")
				return nil
			}

			store, err := cache.Open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				return fmt.Errorf("%s cache cannot be cleared", backendName(opts.Backend))
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess("Cleared the %s cache", backendName(opts.Backend))
			if opts.Dir != "" {
				printDetail("Directory: %s", opts.Dir)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.cacheOptions()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			if opts.Dir == "" {
				return fmt.Errorf("the %s cache has no directory", backendName(opts.Backend))
			}
			fmt.Println(opts.Dir)
			return nil
		},
	}
}

func backendName(b string) string {
	if b == "" {
		return cache.BackendFile
	}
	return b
}
