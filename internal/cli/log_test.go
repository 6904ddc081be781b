package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jocelyn-stericker/satie-sub004/pkg/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level log.Level
		emit  func(*log.Logger)
		want  bool
	}{
		{"info at info", log.InfoLevel, func(l *log.Logger) { l.Info("split measure") }, true},
		{"debug at info", log.InfoLevel, func(l *log.Logger) { l.Debug("cache hit") }, false},
		{"debug at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("cache hit") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("wrote output = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.Logger.Debug("hidden")
	c.SetLogLevel(LogDebug)
	c.Logger.Debug("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("log output = %q", out)
	}
}

func TestLogStage(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.logStage("laid out", 1234567*time.Nanosecond, "measures", 4, "cached", 1)

	out := buf.String()
	for _, want := range []string{"INFO", "laid out", "measures=4", "cached=1", "elapsed=1ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("stage log %q is missing %q", out, want)
		}
	}
}

func TestValidateLogsStage(t *testing.T) {
	dir := t.TempDir()
	score := writeScore(t, dir, "score.json")

	var logs bytes.Buffer
	c := &CLI{Logger: newLogger(&logs, LogInfo), ConfigPath: writeConfig(t, dir, config.BackendNone)}
	if _, err := run(t, c, "validate", score, "-o", filepath.Join(dir, "out.json")); err != nil {
		t.Fatal(err)
	}

	out := logs.String()
	for _, want := range []string{"validated", "measures=4", "splits=1", "elapsed="} {
		if !strings.Contains(out, want) {
			t.Errorf("validate log %q is missing %q", out, want)
		}
	}
}
