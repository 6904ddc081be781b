package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/engine"
	"github.com/jocelyn-stericker/satie-sub004/pkg/pipeline"
)

// layoutFlags are the pipeline overrides shared by layout, inspect and watch.
type layoutFlags struct {
	noCache     bool
	refresh     bool
	approximate bool
	merge       string
	workers     int
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached layouts (results are still cached)")
	cmd.Flags().BoolVar(&f.approximate, "approximate", false, "estimate widths without validating")
	cmd.Flags().StringVar(&f.merge, "merge", "", "merge strategy: two-pass, longest-path (default from config)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "parallel layout workers (default from config)")
}

// options applies the flags over the configured pipeline options.
func (f *layoutFlags) options(c *CLI) (pipeline.Options, error) {
	opts, err := c.pipelineOptions()
	if err != nil {
		return opts, err
	}
	if f.merge != "" {
		opts.Merge = f.merge
	}
	if f.workers != 0 {
		opts.Workers = f.workers
	}
	opts.Refresh = f.refresh
	opts.Approximate = f.approximate
	return opts, nil
}

// layoutFile is the JSON written by layout and watch.
type layoutFile struct {
	Width   float64                 `json:"width"`
	Layouts []*engine.MeasureLayout `json:"layouts"`
}

// layoutCommand creates the layout command.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output string
		flags  layoutFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [score]",
		Short: "Compute measure positions and widths",
		Long: `Compute the horizontal layout of a score as a single line.

The score is validated first (unless --approximate is given), then every
measure is laid out and the measures are placed one after another. The
result is written as JSON with one entry per measure holding its position,
width and element geometry.

Measure layouts are cached, so re-running after a small edit only
recomputes the measures the edit affected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], output, flags)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	flags.register(cmd)

	return cmd
}

// runLayout loads the score, lays it out, and writes output.
func (c *CLI) runLayout(ctx context.Context, input, output string, flags layoutFlags) error {
	doc, err := loadScore(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts, err := flags.options(c)
	if err != nil {
		return err
	}

	spin := c.startSpinner(ctx, "Laying out score...")
	result, err := runner.Execute(ctx, doc, opts)
	elapsed := spin.stop()
	if err != nil {
		printError("Layout failed")
		return fmt.Errorf("lay out %s: %w", input, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logStage("laid out", elapsed,
		"measures", result.Stats.Measures,
		"cached", result.CacheInfo.MeasureHits,
		"width", result.Width)

	outputPath := output
	if outputPath == "" {
		outputPath = derivedPath(input, "layout", ".json")
	}
	if err := writeLayoutFile(outputPath, result); err != nil {
		return err
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(result.Stats.Measures, result.Width, result.CacheInfo)
	if result.Stats.Splits > 0 {
		printWarning("%d overfull measures were split; run validate to save the fixed score", result.Stats.Splits)
	}
	printNewline()
	fmt.Println(measureTable(result.Layouts))
	printNewline()
	printNextStep("Browse", "satie inspect "+input)

	return nil
}

func writeLayoutFile(path string, result *pipeline.Result) error {
	data, err := json.MarshalIndent(layoutFile{Width: result.Width, Layouts: result.Layouts}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}
	return nil
}

// measureTable renders one row per measure.
func measureTable(layouts []*engine.MeasureLayout) string {
	rows := make([][]string, 0, len(layouts))
	for _, ml := range layouts {
		rows = append(rows, []string{
			ml.Number,
			fmt.Sprintf("%d", ml.UUID),
			fmt.Sprintf("%.1f", ml.X),
			fmt.Sprintf("%.1f", ml.Width),
			fmt.Sprintf("%d", ml.MaxDivisions),
			fmt.Sprintf("%d", len(ml.Master())),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Measure", "UUID", "X", "Width", "Divisions", "Elements").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col >= 2 {
				return lipgloss.NewStyle().Foreground(colorCyan).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}
