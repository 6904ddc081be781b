package store

import (
	"context"
	stderrors "errors"
	"os"
	"slices"
	"testing"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

func testScore(title string) *document.Document {
	chord := &document.Model{
		Kind:     document.KindChord,
		DivCount: 4,
		Chord:    &document.Chord{Notes: []document.Note{{Step: "C", Octave: 4, Duration: 4}}},
	}
	return &document.Document{
		Header: document.Header{Title: title, Parts: []document.PartInfo{{ID: "P1"}}},
		Measures: []*document.Measure{{
			UUID:   42,
			Number: "1",
			Parts: map[string]*document.MeasurePart{
				"P1": {Voices: []*document.Segment{nil, {
					Owner:     1,
					OwnerType: document.OwnerVoice,
					Divisions: 1,
					Models:    []*document.Model{chord},
				}}},
			},
		}},
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !stderrors.Is(err, ErrNotFound) || !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}

	if err := s.Put(ctx, "b", testScore("B")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "a", testScore("A")); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Header.Title != "A" {
		t.Errorf("Title = %q", doc.Header.Title)
	}
	if seg := doc.Measures[0].Parts["P1"].Voices[1]; seg.Part != "P1" || seg.Models[0].Kind != document.KindChord {
		t.Errorf("voice segment did not round-trip: %+v", seg)
	}

	if err := s.Put(ctx, "a", testScore("A2")); err != nil {
		t.Fatal(err)
	}
	if doc, _ := s.Get(ctx, "a"); doc.Header.Title != "A2" {
		t.Errorf("Put did not replace: %q", doc.Header.Title)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Errorf("List() = %v", ids)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Errorf("second Delete = %v", err)
	}
	if _, err := s.Get(ctx, "a"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := testScore("A")
	if err := s.Put(ctx, "a", doc); err != nil {
		t.Fatal(err)
	}
	doc.Header.Title = "mutated"
	got, _ := s.Get(ctx, "a")
	if got.Header.Title != "A" {
		t.Error("store shares state with the caller")
	}
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, s)
}

func TestFileStoreEmptyDir(t *testing.T) {
	if _, err := NewFileStore(""); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("NewFileStore(\"\") error = %v", err)
	}
}

func TestInvalidIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tests := []string{"", "../etc/passwd", "a b", "a/b"}
	for _, id := range tests {
		if err := s.Put(ctx, id, testScore("x")); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("Put(%q) error = %v", id, err)
		}
	}
	if err := s.Put(ctx, "ok", nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Put(nil) error = %v", err)
	}
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("SATIE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SATIE_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewMongoStore(ctx, uri, "satie_test")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	for _, id := range []string{"a", "b"} {
		_ = s.Delete(ctx, id)
	}
	exerciseStore(t, s)
}
