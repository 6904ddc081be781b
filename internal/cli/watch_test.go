package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jocelyn-stericker/satie-sub004/pkg/pipeline"
)

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "score.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 20*time.Millisecond, log.New(io.Discard), func() {
			changes <- struct{}{}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// A sibling file must not trigger a run.
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := os.WriteFile(path, []byte(`{"measures":[]}`), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported after writing the score")
	}

	select {
	case <-changes:
		t.Error("a burst of writes should be reported once")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watchFile() = %v", err)
	}
}

func TestRelayoutOnce(t *testing.T) {
	dir := t.TempDir()
	score := writeScore(t, dir, "score.json")
	out := filepath.Join(dir, "score.layout.json")
	runner := pipeline.NewRunner(nil, nil, log.New(io.Discard))

	if err := relayoutOnce(context.Background(), runner, score, out, pipeline.Options{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var lf layoutFile
	if err := json.Unmarshal(data, &lf); err != nil {
		t.Fatal(err)
	}
	if len(lf.Layouts) != 4 {
		t.Errorf("layouts = %d, want 4", len(lf.Layouts))
	}

	if err := os.WriteFile(score, []byte(`{"measures":`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := relayoutOnce(context.Background(), runner, score, out, pipeline.Options{}); err == nil {
		t.Error("a broken score should be reported, not written")
	}
}
