package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jocelyn-stericker/satie-sub004/pkg/cache"
	"github.com/jocelyn-stericker/satie-sub004/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local layout cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheStatsCommand())

	return cmd
}

// fileCache opens the configured file cache directory. Other backends are
// managed with their own tools.
func (c *CLI) fileCache() (*cache.FileCache, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Backend != config.BackendFile {
		return nil, fmt.Errorf("cache backend is %q; only the file cache is managed here", cfg.Cache.Backend)
	}
	return cache.NewFileCache(cfg.Cache.Dir)
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached layouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Cache.Dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			fc, err := c.fileCache()
			if err != nil {
				return err
			}
			count, err := fc.Clear()
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", fc.Dir())
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
			cfg, err := c.config()
			if err != nil {
				return err
			}
			fmt.Println(cfg.Cache.Dir)
			return nil
		},
	}
}

// cacheStatsCommand creates the "cache stats" subcommand.
func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := c.fileCache()
			if err != nil {
				return err
			}
			entries, size, err := fc.Stats()
			if err != nil {
				return fmt.Errorf("read cache: %w", err)
			}
			printKeyValue("Directory", fc.Dir())
			printKeyValue("Entries", fmt.Sprintf("%d", entries))
			printKeyValue("Size", fmt.Sprintf("%.1f KiB", float64(size)/1024))
			return nil
		},
	}
}
