package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/jocelyn-stericker/satie-sub004/pkg/cache"
	"github.com/jocelyn-stericker/satie-sub004/pkg/config"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
	"github.com/jocelyn-stericker/satie-sub004/pkg/store"
)

var factory = document.NewFactory()

func chord(div int, step string) *document.Model {
	m := factory.MustCreate(document.KindChord)
	m.DivCount = div
	m.Chord.Notes = []document.Note{{Step: step, Octave: 4}}
	return m
}

func measure(uuid int64, number string, voice ...*document.Model) *document.Measure {
	return &document.Measure{
		UUID:   uuid,
		Number: number,
		Parts: map[string]*document.MeasurePart{"P1": {
			Voices: []*document.Segment{nil, {Owner: 1, OwnerType: document.OwnerVoice, Divisions: 1, Models: voice}},
			Staves: []*document.Segment{nil, {Owner: 1, OwnerType: document.OwnerStaff, Divisions: 1}},
		}},
	}
}

// writeScore writes a three-measure score to dir and returns its path. The
// second measure overflows 4/4.
func writeScore(t *testing.T, dir, name string) string {
	t.Helper()
	doc := &document.Document{
		Header: document.Header{Title: "Test Score"},
		Measures: []*document.Measure{
			measure(1, "1", chord(2, "C"), chord(2, "D")),
			measure(2, "2", chord(4, "E"), chord(4, "F")),
			measure(3, "3", chord(4, "G")),
		},
	}
	path := filepath.Join(dir, name)
	if err := document.WriteFile(path, doc); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeConfig writes a config file that keeps the cache under dir.
func writeConfig(t *testing.T, dir, backend string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	body := "[cache]\nbackend = \"" + backend + "\"\ndir = \"" + filepath.Join(dir, "cache") + "\"\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietCLI(configPath string) *CLI {
	return &CLI{Logger: log.New(io.Discard), ConfigPath: configPath}
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.CacheConfig
		noCache bool
		want    string
	}{
		{"no cache flag", config.CacheConfig{Backend: config.BackendFile, Dir: dir}, true, "null"},
		{"none backend", config.CacheConfig{Backend: config.BackendNone}, false, "null"},
		{"file backend", config.CacheConfig{Backend: config.BackendFile, Dir: dir}, false, "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newCache(ctx, tt.cfg, tt.noCache)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()
			got := "null"
			if _, ok := c.(*cache.FileCache); ok {
				got = "file"
			}
			if got != tt.want {
				t.Errorf("newCache() = %T, want %s", c, tt.want)
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := newStore(ctx, config.StoreConfig{Backend: config.BackendMemory})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*store.MemoryStore); !ok {
		t.Errorf("memory backend = %T", s)
	}

	dir := filepath.Join(t.TempDir(), "scores")
	s, err = newStore(ctx, config.StoreConfig{Backend: config.BackendFile, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	fs, ok := s.(*store.FileStore)
	if !ok {
		t.Fatalf("file backend = %T", s)
	}
	if fs.Path() != dir {
		t.Errorf("Path() = %q, want %q", fs.Path(), dir)
	}
}

func TestConfigLoadedOnce(t *testing.T) {
	dir := t.TempDir()
	c := quietCLI(writeConfig(t, dir, config.BackendNone))

	first, err := c.config()
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.config()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("config() should cache the loaded configuration")
	}
	if first.Cache.Backend != config.BackendNone {
		t.Errorf("backend = %q", first.Cache.Backend)
	}
}

func TestConfigMissingFile(t *testing.T) {
	c := quietCLI(filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := c.config(); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("config() error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestPipelineOptionsFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "merge = \"longest-path\"\nworkers = 2\n\n[cache]\nbackend = \"none\"\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := quietCLI(path).pipelineOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Merge != "longest-path" || opts.Workers != 2 {
		t.Errorf("opts = merge %q workers %d", opts.Merge, opts.Workers)
	}
	if opts.Spacing.ChordBase == 0 {
		t.Error("engraving constants should come from the config defaults")
	}
}

func TestDerivedPath(t *testing.T) {
	tests := []struct {
		input, tag, ext, want string
	}{
		{"song.json", "layout", ".json", "song.layout.json"},
		{"dir/song.yaml", "validated", ".yaml", "dir/song.validated.yaml"},
		{"song", "layout", ".json", "song.layout.json"},
	}
	for _, tt := range tests {
		if got := derivedPath(tt.input, tt.tag, tt.ext); got != tt.want {
			t.Errorf("derivedPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadScore(t *testing.T) {
	dir := t.TempDir()
	path := writeScore(t, dir, "score.yaml")

	doc, err := loadScore(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Measures) != 3 {
		t.Errorf("measures = %d", len(doc.Measures))
	}

	if _, err := loadScore(filepath.Join(dir, "score.txt")); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("loadScore(.txt) error = %v", err)
	}
	if _, err := loadScore(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("loadScore(missing) error = %v", err)
	}
}

func TestFindMeasure(t *testing.T) {
	doc := &document.Document{Measures: []*document.Measure{
		measure(1, "1"), measure(2, "2"), measure(3, "2a"),
	}}

	tests := []struct {
		ref     string
		want    int
		wantErr errors.Code
	}{
		{"1", 0, ""},
		{"2a", 2, ""},
		{"#1", 1, ""},
		{"#3", 0, errors.ErrCodeInvalidNumber},
		{"#x", 0, errors.ErrCodeInvalidNumber},
		{"9", 0, errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		got, err := findMeasure(doc, tt.ref)
		if tt.wantErr != "" {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("findMeasure(%q) error = %v, want %s", tt.ref, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("findMeasure(%q) = %d, %v; want %d", tt.ref, got, err, tt.want)
		}
	}
}
