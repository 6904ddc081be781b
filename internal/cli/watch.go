package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jocelyn-stericker/satie-sub004/pkg/pipeline"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 150 * time.Millisecond

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		output string
		flags  layoutFlags
	)

	cmd := &cobra.Command{
		Use:   "watch [score]",
		Short: "Re-run layout whenever a score file changes",
		Long: `Lay out a score, then keep laying it out every time the file is saved.

The layout cache persists across runs, so each save only recomputes the
measures that changed and those whose inherited state changed with them.
Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], output, flags)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, input, output string, flags layoutFlags) error {
	logger := c.Logger

	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts, err := flags.options(c)
	if err != nil {
		return err
	}
	if output == "" {
		output = derivedPath(input, "layout", ".json")
	}

	relayout := func() error {
		return relayoutOnce(ctx, runner, input, output, opts)
	}
	if err := relayout(); err != nil {
		printError("%v", err)
	}

	printInfo("Watching %s", input)
	return watchFile(ctx, input, watchDebounce, logger, func() {
		if err := relayout(); err != nil {
			printError("%v", err)
		}
	})
}

// relayoutOnce reads, lays out and writes one revision of the score.
func relayoutOnce(ctx context.Context, runner *pipeline.Runner, input, output string, opts pipeline.Options) error {
	doc, err := loadScore(input)
	if err != nil {
		return err
	}
	result, err := runner.Execute(ctx, doc, opts)
	if err != nil {
		return fmt.Errorf("lay out %s: %w", input, err)
	}
	if err := writeLayoutFile(output, result); err != nil {
		return err
	}
	printSuccess("%s %s", time.Now().Format("15:04:05"), output)
	printStats(result.Stats.Measures, result.Width, result.CacheInfo)
	return nil
}

// watchFile calls onChange after path is written, created or replaced,
// once per burst of events. The parent directory is watched so editors
// that save by renaming a temporary file are seen. It returns when ctx is
// cancelled.
func watchFile(ctx context.Context, path string, debounce time.Duration, logger *log.Logger, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Debug("watcher started", "path", abs)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Debug("watcher stopped", "path", abs)
			return nil

		case <-timerCh:
			timerCh = nil
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("score changed", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", werr)
		}
	}
}
