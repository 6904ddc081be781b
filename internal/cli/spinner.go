package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerTick = 80 * time.Millisecond

// spinner animates "<frame> <message> <seconds>" on CLI.Status while a
// pipeline stage runs. It stops on stop or when its context ends.
type spinner struct {
	out     io.Writer
	message string
	start   time.Time

	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
	elapsed time.Duration
}

// startSpinner starts a spinner for message. A nil Status discards it.
func (c *CLI) startSpinner(ctx context.Context, message string) *spinner {
	out := c.Status
	if out == nil {
		out = io.Discard
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &spinner{
		out:     out,
		message: message,
		start:   time.Now(),
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *spinner) run(ctx context.Context) {
	defer close(s.stopped)
	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()

	width := 0
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			if width > 0 {
				fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", width))
			}
			return
		case <-ticker.C:
			secs := fmt.Sprintf("%.1fs", time.Since(s.start).Seconds())
			frame := spinnerFrames[i%len(spinnerFrames)]
			fmt.Fprintf(s.out, "\r%s %s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message), StyleDim.Render(secs))
			width = max(width, len(s.message)+len(secs)+4)
		}
	}
}

// stop clears the line and returns how long the spinner ran. Later calls
// return the same duration.
func (s *spinner) stop() time.Duration {
	s.once.Do(func() {
		s.cancel()
		<-s.stopped
		s.elapsed = time.Since(s.start)
	})
	return s.elapsed
}
