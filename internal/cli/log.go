// Package cli implements the satie command-line interface.
//
// The CLI validates and lays out score files, browses layouts
// interactively, renders merge graphs, and serves the HTTP API. It is built
// on cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - validate: Normalize a score and split overfull measures
//   - layout: Compute measure positions and widths
//   - inspect: Browse measures and their elements in a terminal UI
//   - dag: Render the merge constraint graph of one measure
//   - watch: Re-run layout whenever a score file changes
//   - serve: Run the HTTP API
//   - cache: Manage the layout cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Commands
// log through the CLI's logger; each finished stage is logged once with
// its counts and elapsed time. Spinner output goes to CLI.Status so stdout
// stays clean for piped results.
//
// # Example
//
//	import "github.com/jocelyn-stericker/satie-sub004/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns a logger writing to w at level, with short timestamps
// such as "14:32:01.45".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// logStage logs the end of a pipeline stage run by a command, e.g.
//
//	INFO validated measures=4 splits=1 passes=2 elapsed=3ms
func (c *CLI) logStage(stage string, elapsed time.Duration, keyvals ...any) {
	keyvals = append(keyvals, "elapsed", elapsed.Round(time.Millisecond))
	c.Logger.Info(stage, keyvals...)
}
