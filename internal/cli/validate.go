package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	var (
		output    string
		maxFixups int
	)

	cmd := &cobra.Command{
		Use:   "validate [score]",
		Short: "Normalize a score and split overfull measures",
		Long: `Validate a score and write the normalized result.

Validation brings every segment to a common division unit, inserts missing
print, attributes and barline elements, and splits measures whose contents
overflow the time signature. The input file is never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), args[0], output, maxFixups)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.validated.<ext>)")
	cmd.Flags().IntVar(&maxFixups, "max-fixups", 0, "fixups allowed per measure before giving up (default from config)")

	return cmd
}

func (c *CLI) runValidate(ctx context.Context, input, output string, maxFixups int) error {
	doc, err := loadScore(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts, err := c.pipelineOptions()
	if err != nil {
		return err
	}
	if maxFixups > 0 {
		opts.MaxFixups = maxFixups
	}

	start := time.Now()
	report, err := runner.Validate(ctx, doc, opts)
	if err != nil {
		return fmt.Errorf("validate %s: %w", input, err)
	}
	c.logStage("validated", time.Since(start),
		"measures", len(doc.Measures), "splits", len(report.Splits), "passes", report.Passes)

	outputPath := output
	if outputPath == "" {
		outputPath = derivedPath(input, "validated", filepath.Ext(input))
	}
	if err := document.WriteFile(outputPath, doc); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Score is valid")
	printFile(outputPath)
	printDetail("%d passes, %d measures checked, %d reused", report.Passes, report.Validated, report.Skipped)
	if report.Unit > 0 {
		printDetail("division unit %d", report.Unit)
	}
	for _, s := range report.Splits {
		printWarning("Measure %s overflowed at %d divisions; continued in measure %s", s.Number, s.MaxDiv, s.NewNumber)
	}
	printNewline()
	printNextStep("Lay out", "satie layout "+outputPath)

	return nil
}

// loadScore reads a score file after checking its path.
func loadScore(path string) (*document.Document, error) {
	if err := errors.ValidateScorePath(path); err != nil {
		return nil, err
	}
	doc, err := document.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load score %s: %w", path, err)
	}
	return doc, nil
}

// derivedPath returns input with its extension replaced by "."+tag+ext.
func derivedPath(input, tag, ext string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "." + tag + ext
}
