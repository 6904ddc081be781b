package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var flags layoutFlags

	cmd := &cobra.Command{
		Use:   "inspect [score]",
		Short: "Browse measures and their elements interactively",
		Long: `Lay out a score and open an interactive table of its measures.

Select a measure to see its merged elements: division, render class, owning
staff, offset within the measure and rendered width.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), args[0], flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func (c *CLI) runInspect(ctx context.Context, input string, flags layoutFlags) error {
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

	result, err := runner.Execute(ctx, doc, opts)
	if err != nil {
		return fmt.Errorf("lay out %s: %w", input, err)
	}

	title := input
	if doc.Header.Title != "" {
		title = doc.Header.Title
	}
	p := tea.NewProgram(NewMeasureListModel(title, result.Layouts), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
	_, err = p.Run()
	return err
}
