package engine

import (
	"context"
	"slices"
	"testing"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

func validate(t *testing.T, doc *document.Document, memo *Memo) *Report {
	t.Helper()
	report, err := Validate(context.Background(), &Options{Document: doc, UUIDs: NewSeededUUIDs(1)}, memo)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return report
}

func TestValidateInsertsHeadersAndBarline(t *testing.T) {
	doc := newDocument(newMeasure(1, "1", staffSegment(1), voiceSegment(1, newChord(4))))
	validate(t, doc, nil)

	staff := doc.Measures[0].Parts["P1"].Staves[1]
	want := []document.Kind{document.KindPrint, document.KindAttributes, document.KindSpacer, document.KindBarline}
	if got := kindsOf(staff.Models); !slices.Equal(got, want) {
		t.Fatalf("staff = %v, want %v", got, want)
	}
	if staff.Models[2].DivCount != 4 {
		t.Errorf("gap spacer = %d, want 4", staff.Models[2].DivCount)
	}
	if style := staff.Models[3].Barline.Style; style != document.BarStyleLightHeavy {
		t.Errorf("final barline style = %q", style)
	}
	attrs := staff.Models[1].Attributes
	if attrs.Divisions != 1 || attrs.Time == nil || len(attrs.Clefs) != 1 {
		t.Errorf("attributes defaults not filled: %+v", attrs)
	}
	if doc.Measures[0].Version == 0 {
		t.Error("structural fixups should bump the version")
	}
}

func TestValidateProxiesHeadersOnLowerStaves(t *testing.T) {
	doc := newDocument(newMeasure(1, "1",
		staffSegment(1, newAttributes(4, 4)),
		staffSegment(2),
		voiceSegment(1, newChord(4)),
	))
	validate(t, doc, nil)

	staff2 := doc.Measures[0].Parts["P1"].Staves[2]
	if len(staff2.Models) < 2 {
		t.Fatalf("staff 2 = %v", kindsOf(staff2.Models))
	}
	for i, kind := range []document.Kind{document.KindPrint, document.KindAttributes} {
		m := staff2.Models[i]
		if m.Kind != document.KindProxy || m.Proxy.TargetKind != kind {
			t.Fatalf("staff 2 model %d = %v, want proxy for %v", i, m.Kind, kind)
		}
		if m.Proxy.Target.Staff != 1 || m.Proxy.Target.Index != i {
			t.Errorf("proxy %d targets %+v", i, m.Proxy.Target)
		}
	}
	if last := staff2.Models[len(staff2.Models)-1]; last.Kind != document.KindBarline {
		t.Errorf("staff 2 should end with a barline, got %v", last.Kind)
	}
}

func TestValidateSplitsOverflowingMeasure(t *testing.T) {
	doc := newDocument(newMeasure(1, "1",
		staffSegment(1, newAttributes(4, 4)),
		voiceSegment(1, newChord(4), newChord(2), newChord(2)),
	))
	report := validate(t, doc, nil)

	if len(doc.Measures) != 2 {
		t.Fatalf("len(measures) = %d, want 2", len(doc.Measures))
	}
	if len(report.Splits) != 1 {
		t.Errorf("splits = %d, want 1", len(report.Splits))
	}
	numbers := []string{doc.Measures[0].Number, doc.Measures[1].Number}
	if !slices.Equal(numbers, []string{"1", "2"}) {
		t.Errorf("numbers = %v", numbers)
	}
	first := doc.Measures[0].Parts["P1"]
	second := doc.Measures[1].Parts["P1"]
	if got := divCounts(first.Voices[1]); !slices.Equal(got, []int{4}) {
		t.Errorf("first voice = %v", got)
	}
	if got := divCounts(second.Voices[1]); !slices.Equal(got, []int{2, 2}) {
		t.Errorf("second voice = %v", got)
	}
	firstBar := first.Staves[1].Models[len(first.Staves[1].Models)-1]
	secondBar := second.Staves[1].Models[len(second.Staves[1].Models)-1]
	if firstBar.Kind != document.KindBarline || firstBar.Barline.Style != document.BarStyleRegular {
		t.Errorf("first measure should end with a regular barline")
	}
	if secondBar.Kind != document.KindBarline || secondBar.Barline.Style != document.BarStyleLightHeavy {
		t.Errorf("last measure should end with a final barline")
	}
	if got := kindsOf(second.Staves[1].Models); got[0] != document.KindPrint || got[1] != document.KindAttributes {
		t.Errorf("new measure staff = %v", got)
	}
}

func TestValidateNormalizesDivisions(t *testing.T) {
	staff := staffSegment(1, newAttributes(4, 4))
	voice := voiceSegment(1, newChord(3), newChord(1))
	voice.Divisions = 2
	doc := newDocument(newMeasure(1, "1", staff, voice))
	report := validate(t, doc, nil)

	if report.Unit != 2 {
		t.Errorf("Unit = %d, want 2", report.Unit)
	}
	if staff.Divisions != 2 {
		t.Errorf("staff divisions = %d, want 2", staff.Divisions)
	}
	if got := divCounts(voice); !slices.Equal(got, []int{3, 1}) {
		t.Errorf("voice = %v", got)
	}
	if len(doc.Measures) != 1 {
		t.Errorf("a half-filled measure should not split, got %d measures", len(doc.Measures))
	}
}

func TestValidateMemoSkipsCleanMeasures(t *testing.T) {
	doc := newDocument(
		newMeasure(1, "1", staffSegment(1, newAttributes(4, 4)), voiceSegment(1, newChord(4))),
		newMeasure(2, "2", staffSegment(1), voiceSegment(1, newChord(4))),
	)
	memo := NewMemo()
	first := validate(t, doc, memo)
	if first.Validated != 2 || first.Skipped != 0 {
		t.Errorf("first run validated %d, skipped %d", first.Validated, first.Skipped)
	}
	if memo.Len() != 2 {
		t.Errorf("memo holds %d measures, want 2", memo.Len())
	}

	second := validate(t, doc, memo)
	if second.Validated != 0 || second.Skipped != 2 {
		t.Errorf("second run validated %d, skipped %d", second.Validated, second.Skipped)
	}

	doc.Measures[1].Touch()
	third := validate(t, doc, memo)
	if third.Validated != 1 || third.Skipped != 1 {
		t.Errorf("after an edit validated %d, skipped %d", third.Validated, third.Skipped)
	}
}

func TestValidateZeroCapacityFails(t *testing.T) {
	attrs := newAttributes(0, 4)
	doc := newDocument(newMeasure(1, "1", staffSegment(1, attrs), voiceSegment(1, newChord(1))))
	_, err := Validate(context.Background(), &Options{Document: doc, UUIDs: NewSeededUUIDs(1)}, nil)
	if !errors.Is(err, errors.ErrCodeFixupLoop) {
		t.Errorf("error = %v, want FIXUP_LOOP", err)
	}
}

func TestValidateProcessors(t *testing.T) {
	var calls []string
	pre := func(ms []*document.Measure) ([]*document.Measure, error) {
		calls = append(calls, "pre")
		return ms, nil
	}
	post := func(ms []*document.Measure) ([]*document.Measure, error) {
		calls = append(calls, "post")
		if ms[0].Parts["P1"].Staves[1].Len() == 0 {
			t.Error("postprocessor ran before validation")
		}
		return ms, nil
	}
	doc := newDocument(newMeasure(1, "1", staffSegment(1), voiceSegment(1, newChord(4))))
	_, err := Validate(context.Background(), &Options{
		Document:       doc,
		Preprocessors:  []Processor{pre},
		Postprocessors: []Processor{post},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(calls, []string{"pre", "post"}) {
		t.Errorf("calls = %v", calls)
	}
}

func TestValidateErrors(t *testing.T) {
	if _, err := Validate(context.Background(), nil, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("nil options: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := newDocument(newMeasure(1, "1", staffSegment(1)))
	if _, err := Validate(ctx, &Options{Document: doc}, nil); err != context.Canceled {
		t.Errorf("canceled context: %v", err)
	}

	noStaff1 := newDocument(newMeasure(1, "1", staffSegment(2)))
	if _, err := Validate(context.Background(), &Options{Document: noStaff1}, nil); !errors.Is(err, errors.ErrCodeMissingElement) {
		t.Errorf("missing staff 1: %v", err)
	}
}

func TestValidateHeadersIdempotent(t *testing.T) {
	doc := newDocument(newMeasure(1, "1",
		staffSegment(1, newAttributes(4, 4)),
		staffSegment(2),
		voiceSegment(1, newChord(4), newChord(2), newChord(2)),
	))
	validate(t, doc, nil)
	if len(doc.Measures) != 2 {
		t.Fatalf("len(measures) = %d, want 2", len(doc.Measures))
	}

	type snapshot struct {
		version int
		staves  [][]document.Kind
	}
	take := func() []snapshot {
		var out []snapshot
		for _, m := range doc.Measures {
			s := snapshot{version: m.Version}
			for _, seg := range m.Parts["P1"].Staves {
				if seg != nil {
					s.staves = append(s.staves, kindsOf(seg.Models))
				}
			}
			out = append(out, s)
		}
		return out
	}
	before := take()

	report := validate(t, doc, nil)
	if len(report.Splits) != 0 {
		t.Errorf("second validation split %d measures", len(report.Splits))
	}
	after := take()
	if len(after) != len(before) {
		t.Fatalf("measures %d -> %d", len(before), len(after))
	}
	for i := range before {
		if after[i].version != before[i].version {
			t.Errorf("measure %d version %d -> %d", i, before[i].version, after[i].version)
		}
		for j := range before[i].staves {
			if !slices.Equal(after[i].staves[j], before[i].staves[j]) {
				t.Errorf("measure %d staff %d = %v, was %v", i, j+1, after[i].staves[j], before[i].staves[j])
			}
		}
	}
	staff2 := doc.Measures[1].Parts["P1"].Staves[2]
	if staff2.Models[0].Kind != document.KindProxy || staff2.Models[1].Kind != document.KindProxy {
		t.Errorf("staff 2 of the new measure = %v, want proxies first", kindsOf(staff2.Models))
	}
}

func TestValidateMemoRechecksInheritedAttributes(t *testing.T) {
	header := newAttributes(2, 4)
	doc := newDocument(
		newMeasure(1, "1", staffSegment(1, header), voiceSegment(1, newChord(2))),
		newMeasure(2, "2", staffSegment(1), voiceSegment(1, newChord(2))),
	)
	memo := NewMemo()
	validate(t, doc, memo)

	doc.Measures[0].Touch()
	touched := validate(t, doc, memo)
	if touched.Validated != 1 || touched.Skipped != 1 {
		t.Errorf("after a touch validated %d, skipped %d; want 1, 1", touched.Validated, touched.Skipped)
	}

	header.Attributes.Time = &document.Time{Beats: []int{4}, BeatTypes: []int{4}}
	doc.Measures[0].Touch()
	changed := validate(t, doc, memo)
	if changed.Validated != 2 || changed.Skipped != 0 {
		t.Errorf("after a time change validated %d, skipped %d; want 2, 0", changed.Validated, changed.Skipped)
	}
}
