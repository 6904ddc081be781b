package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

const yamlScore = `
header:
  title: Test
  parts:
    - id: P1
measures:
  - uuid: 11
    number: "1"
    parts:
      P1:
        voices:
          - null
          - owner: 1
            ownerType: voice
            divisions: 1
            models:
              - _class: Chord
                divCount: 4
                chord:
                  notes:
                    - step: C
                      octave: 4
        staves:
          - null
          - owner: 1
            ownerType: staff
            divisions: 1
            models:
              - _class: Attributes
                attributes:
                  time:
                    beats: [4]
                    beatTypes: [4]
`

func TestDecodeYAML(t *testing.T) {
	doc, err := Decode(strings.NewReader(yamlScore), FormatYAML)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(doc.Measures) != 1 {
		t.Fatalf("measures = %d, want 1", len(doc.Measures))
	}
	m := doc.Measures[0]
	part := m.Parts["P1"]
	if part.Voices[0] != nil || part.Staves[0] != nil {
		t.Error("index 0 should be a hole")
	}
	voice := part.Voices[1]
	if voice.Part != "P1" {
		t.Errorf("voice.Part = %q, want P1", voice.Part)
	}
	if voice.Models[0].Kind != KindChord || voice.Models[0].DivCount != 4 {
		t.Errorf("voice model = %+v", voice.Models[0])
	}
	attrs := part.Staves[1].Models[0]
	if attrs.Kind != KindAttributes || attrs.Attributes.Time.Beats[0] != 4 {
		t.Errorf("staff model = %+v", attrs)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	doc, err := Decode(strings.NewReader(yamlScore), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(doc, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"_class": "Chord"`)) {
		t.Errorf("json output missing class tag:\n%s", data)
	}
	back, err := Unmarshal(data, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Marshal(back, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("round trip changed output:\n%s\n---\n%s", data, again)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format Format
		code   errors.Code
	}{
		{"bad json", "{", FormatJSON, errors.ErrCodeInvalidInput},
		{"unknown class", `{"measures":[{"parts":{"P1":{"voices":[null,{"models":[{"_class":"Tuplet"}]}]}}}]}`, FormatJSON, errors.ErrCodeInvalidInput},
		{"null measure", `{"measures":[null]}`, FormatJSON, errors.ErrCodeInvalidInput},
		{"bad format", "{}", Format("xml"), errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), tt.format)
			if !errors.Is(err, tt.code) {
				t.Errorf("Decode() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestReadWriteFile(t *testing.T) {
	doc, err := Decode(strings.NewReader(yamlScore), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	for _, name := range []string{"score.json", "score.yml"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, doc); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
		back, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", name, err)
		}
		if back.Measures[0].UUID != 11 {
			t.Errorf("ReadFile(%s) uuid = %d", name, back.Measures[0].UUID)
		}
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("ReadFile(missing) error = %v, want FILE_NOT_FOUND", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "score.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(filepath.Join(dir, "score.txt")); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("ReadFile(txt) error = %v, want INVALID_FORMAT", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc, err := Decode(strings.NewReader(yamlScore), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	c := doc.Clone()
	c.Measures[0].Parts["P1"].Voices[1].Models[0].DivCount = 99
	c.Measures[0].Parts["P1"].Staves[1].Models[0].Attributes.Time.Beats[0] = 3
	if doc.Measures[0].Parts["P1"].Voices[1].Models[0].DivCount != 4 {
		t.Error("clone shares models with original")
	}
	if doc.Measures[0].Parts["P1"].Staves[1].Models[0].Attributes.Time.Beats[0] != 4 {
		t.Error("clone shares attributes with original")
	}
}
