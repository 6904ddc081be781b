package cli

import (
	"github.com/spf13/cobra"

	"github.com/jocelyn-stericker/satie-sub004/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// The persistent --config flag selects the TOML configuration; without it
// $XDG_CONFIG_HOME/satie/config.toml is used when present.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Satie lays out music scores",
		Long: `Satie validates music scores and computes their horizontal layout: it
normalizes divisions, splits overfull measures, and aligns the elements of
every voice and staff so simultaneous events line up.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default: $XDG_CONFIG_HOME/satie/config.toml)")

	// Register all subcommands
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.dagCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
