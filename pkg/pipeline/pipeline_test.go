package pipeline

import (
	"context"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jocelyn-stericker/satie-sub004/pkg/cache"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/engine"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
	"github.com/jocelyn-stericker/satie-sub004/pkg/observability"
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

func score(measures ...*document.Measure) *document.Document {
	doc := &document.Document{Measures: measures}
	for _, m := range measures {
		m.Segments()
	}
	doc.Reindex()
	return doc
}

func quietRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.New(io.Discard))
}

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"zero value", Options{}, false},
		{"longest path", Options{Merge: "longest-path"}, false},
		{"unknown merge", Options{Merge: "fastest"}, true},
		{"negative workers", Options{Workers: -1}, true},
		{"too many workers", Options{Workers: MaxWorkers + 1}, true},
		{"negative fixups", Options{MaxFixups: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("error code = %s", errors.GetCode(err))
			}
			if err == nil && (tt.opts.Workers == 0 || tt.opts.Merge == "" || tt.opts.Logger == nil) {
				t.Errorf("defaults not applied: %+v", tt.opts)
			}
		})
	}
}

func TestExecute(t *testing.T) {
	doc := score(
		measure(1, "1", chord(2, "C"), chord(2, "D")),
		measure(2, "2", chord(4, "E")),
	)
	result, err := quietRunner(nil).Execute(context.Background(), doc, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Layouts) != 2 {
		t.Fatalf("len(Layouts) = %d, want 2", len(result.Layouts))
	}
	first, second := result.Layouts[0], result.Layouts[1]
	if first.X != 0 || second.X != first.Width {
		t.Errorf("measures not placed end to end: x = %v, %v (first width %v)", first.X, second.X, first.Width)
	}
	if math.Abs(result.Width-(first.Width+second.Width)) > 1e-9 {
		t.Errorf("Width = %v", result.Width)
	}
	if result.Report == nil || result.Stats.Passes != 1 || result.Stats.Splits != 0 {
		t.Errorf("unexpected validation stats %+v", result.Stats)
	}
	if got := len(doc.Measures[0].Parts["P1"].Staves[1].Models); got != 0 {
		t.Errorf("Execute modified its input: staff has %d models", got)
	}
	if got := len(result.Document.Measures[0].Parts["P1"].Staves[1].Models); got == 0 {
		t.Error("validated document has no staff header")
	}
}

func TestExecuteSplitsOverflow(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	doc := score(measure(1, "1", chord(4, "C"), chord(2, "D"), chord(2, "E")))
	result, err := quietRunner(nil).Execute(context.Background(), doc, Options{UUIDs: engine.NewSeededUUIDs(3)})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Document.Measures) != 2 || len(result.Layouts) != 2 {
		t.Fatalf("got %d measures, %d layouts, want 2", len(result.Document.Measures), len(result.Layouts))
	}
	if result.Stats.Splits != 1 {
		t.Errorf("Splits = %d, want 1", result.Stats.Splits)
	}
	if result.Document.Measures[1].Number != "2" {
		t.Errorf("new measure number = %q", result.Document.Measures[1].Number)
	}
	if hooks.splits != 1 || hooks.validated != 1 || hooks.laidOut != 1 {
		t.Errorf("hooks saw %+v", hooks)
	}
}

func TestLayoutRejectsOverflowWithoutValidation(t *testing.T) {
	doc := score(measure(1, "1", chord(4, "C"), chord(4, "D")))
	if _, err := quietRunner(nil).Validate(context.Background(), doc, Options{UUIDs: engine.NewSeededUUIDs(1)}); err != nil {
		t.Fatal(err)
	}
	// Overfill the first measure again.
	doc.Measures[0].Parts["P1"].Voices[1].Models = append(doc.Measures[0].Parts["P1"].Voices[1].Models, chord(4, "E"))

	_, err := quietRunner(nil).Layout(context.Background(), doc, Options{})
	if !errors.Is(err, errors.ErrCodeDivisionOverflow) {
		t.Errorf("Layout() error = %v, want DIVISION_OVERFLOW", err)
	}
}

func TestExecuteApproximate(t *testing.T) {
	doc := score(measure(1, "1", chord(4, "C"), chord(4, "D"), chord(4, "E")))
	result, err := quietRunner(nil).Execute(context.Background(), doc, Options{Approximate: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Report != nil {
		t.Error("approximate mode should skip validation")
	}
	if len(result.Layouts) != 1 || result.Width <= 0 {
		t.Errorf("layouts = %d, width = %v", len(result.Layouts), result.Width)
	}
}

func TestExecuteNilDocument(t *testing.T) {
	if _, err := quietRunner(nil).Execute(context.Background(), nil, Options{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Execute(nil) error = %v", err)
	}
}

func TestLayoutCache(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	r := quietRunner(c)
	build := func(lastStep string) *document.Document {
		return score(
			measure(1, "1", chord(4, "C")),
			measure(2, "2", chord(4, lastStep)),
		)
	}

	first, err := r.Execute(ctx, build("D"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.DocumentHit || first.CacheInfo.MeasureMisses != 2 {
		t.Errorf("cold run cache info = %+v", first.CacheInfo)
	}

	second, err := r.Execute(ctx, build("D"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.DocumentHit {
		t.Errorf("warm run cache info = %+v", second.CacheInfo)
	}
	if second.Width != first.Width {
		t.Errorf("cached width %v != computed %v", second.Width, first.Width)
	}

	edited, err := r.Execute(ctx, build("F"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if edited.CacheInfo.MeasureHits != 1 || edited.CacheInfo.MeasureMisses != 1 {
		t.Errorf("edit should reuse the untouched measure: %+v", edited.CacheInfo)
	}

	refreshed, err := r.Execute(ctx, build("D"), Options{Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheInfo.DocumentHit || refreshed.CacheInfo.MeasureHits != 0 {
		t.Errorf("refresh read the cache: %+v", refreshed.CacheInfo)
	}
}

func TestMergeStrategiesAgree(t *testing.T) {
	build := func() *document.Document {
		m := measure(1, "1", chord(1, "C"), chord(1, "D"), chord(2, "E"))
		m.Parts["P1"].Voices = append(m.Parts["P1"].Voices,
			&document.Segment{Owner: 2, OwnerType: document.OwnerVoice, Divisions: 1,
				Models: []*document.Model{chord(2, "G"), chord(2, "A")}})
		return score(m)
	}
	a, err := quietRunner(nil).Execute(context.Background(), build(), Options{Merge: "two-pass"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := quietRunner(nil).Execute(context.Background(), build(), Options{Merge: "longest-path"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Width != b.Width {
		t.Errorf("two-pass width %v != longest-path width %v", a.Width, b.Width)
	}
}

// =============================================================================
// Test doubles
// =============================================================================

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) Close() error { return nil }

type recordingHooks struct {
	observability.NoopPipelineHooks
	splits, validated, laidOut int
}

func (h *recordingHooks) OnMeasureSplit(context.Context, int64, int) { h.splits++ }

func (h *recordingHooks) OnValidateComplete(context.Context, int, int, time.Duration, error) {
	h.validated++
}

func (h *recordingHooks) OnLayoutComplete(context.Context, int, time.Duration, error) {
	h.laidOut++
}
