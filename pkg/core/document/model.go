package document

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Kind - Model Type Tag
// =============================================================================

// Kind tags the concrete variant held by a [Model]. The numeric value is the
// render-class priority: at equal divisions, lower values are laid out first.
type Kind int

// Model kinds, valued by render priority.
const (
	KindPrint        Kind = 10
	KindGrouping     Kind = 30
	KindFiguredBass  Kind = 40
	KindAttributes   Kind = 110
	KindSound        Kind = 120
	KindDirection    Kind = 130
	KindHarmony      Kind = 140
	KindProxy        Kind = 150
	KindSpacer       Kind = 160
	KindChord        Kind = 220
	KindVisualCursor Kind = 398
	KindBarline      Kind = 399
	KindUnknown      Kind = 1000
)

var kindNames = map[Kind]string{
	KindPrint:        "Print",
	KindGrouping:     "Grouping",
	KindFiguredBass:  "FiguredBass",
	KindAttributes:   "Attributes",
	KindSound:        "Sound",
	KindDirection:    "Direction",
	KindHarmony:      "Harmony",
	KindProxy:        "Proxy",
	KindSpacer:       "Spacer",
	KindChord:        "Chord",
	KindVisualCursor: "VisualCursor",
	KindBarline:      "Barline",
	KindUnknown:      "Unknown",
}

// String returns the class name used in serialized scores.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the kind for a serialized class name.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindUnknown, false
}

// MarshalText writes the class name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText reads a class name.
func (k *Kind) UnmarshalText(text []byte) error {
	kind, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown model class %q", text)
	}
	*k = kind
	return nil
}

// =============================================================================
// Model - Tagged Union
// =============================================================================

// Model is a single musical element in a segment. Exactly one payload
// pointer matching Kind is set; kinds without state (Spacer, Grouping, ...)
// carry no payload.
type Model struct {
	Kind     Kind `json:"-" yaml:"-" bson:"kind"`
	DivCount int  `json:"divCount" yaml:"divCount" bson:"div_count"`
	StaffIdx int  `json:"staffIdx,omitempty" yaml:"staffIdx,omitempty" bson:"staff_idx,omitempty"`

	Print      *Print      `json:"print,omitempty" yaml:"print,omitempty" bson:"print,omitempty"`
	Attributes *Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty" bson:"attributes,omitempty"`
	Sound      *Sound      `json:"sound,omitempty" yaml:"sound,omitempty" bson:"sound,omitempty"`
	Direction  *Direction  `json:"direction,omitempty" yaml:"direction,omitempty" bson:"direction,omitempty"`
	Proxy      *Proxy      `json:"proxy,omitempty" yaml:"proxy,omitempty" bson:"proxy,omitempty"`
	Chord      *Chord      `json:"chord,omitempty" yaml:"chord,omitempty" bson:"chord,omitempty"`
	Barline    *Barline    `json:"barline,omitempty" yaml:"barline,omitempty" bson:"barline,omitempty"`
}

// Print starts a new system or page.
type Print struct {
	NewSystem    bool    `json:"newSystem,omitempty" yaml:"newSystem,omitempty" bson:"new_system,omitempty"`
	NewPage      bool    `json:"newPage,omitempty" yaml:"newPage,omitempty" bson:"new_page,omitempty"`
	StaffSpacing float64 `json:"staffSpacing,omitempty" yaml:"staffSpacing,omitempty" bson:"staff_spacing,omitempty"`
}

// Attributes changes clef, key, time or divisions at its division. Nil
// fields are inherited from the previous attributes on the staff.
type Attributes struct {
	Divisions int    `json:"divisions,omitempty" yaml:"divisions,omitempty" bson:"divisions,omitempty"`
	Staves    int    `json:"staves,omitempty" yaml:"staves,omitempty" bson:"staves,omitempty"`
	Time      *Time  `json:"time,omitempty" yaml:"time,omitempty" bson:"time,omitempty"`
	Key       *Key   `json:"key,omitempty" yaml:"key,omitempty" bson:"key,omitempty"`
	Clefs     []Clef `json:"clefs,omitempty" yaml:"clefs,omitempty" bson:"clefs,omitempty"`
}

// Time is a (possibly compound) time signature. Beats[i]/BeatTypes[i] are
// summed, so 3/8+2/8 is Beats=[3,2], BeatTypes=[8,8].
type Time struct {
	Beats       []int `json:"beats,omitempty" yaml:"beats,omitempty" bson:"beats,omitempty"`
	BeatTypes   []int `json:"beatTypes,omitempty" yaml:"beatTypes,omitempty" bson:"beat_types,omitempty"`
	SenzaMisura bool  `json:"senzaMisura,omitempty" yaml:"senzaMisura,omitempty" bson:"senza_misura,omitempty"`
}

// Key is a key signature expressed as a count of fifths.
type Key struct {
	Fifths int    `json:"fifths" yaml:"fifths" bson:"fifths"`
	Mode   string `json:"mode,omitempty" yaml:"mode,omitempty" bson:"mode,omitempty"`
}

// Clef is a clef on one staff of a part.
type Clef struct {
	Staff int    `json:"staff,omitempty" yaml:"staff,omitempty" bson:"staff,omitempty"`
	Sign  string `json:"sign" yaml:"sign" bson:"sign"`
	Line  int    `json:"line,omitempty" yaml:"line,omitempty" bson:"line,omitempty"`
}

// Sound is a playback directive.
type Sound struct {
	Tempo    float64 `json:"tempo,omitempty" yaml:"tempo,omitempty" bson:"tempo,omitempty"`
	Dynamics float64 `json:"dynamics,omitempty" yaml:"dynamics,omitempty" bson:"dynamics,omitempty"`
}

// Direction is a textual performance direction.
type Direction struct {
	Words     string `json:"words,omitempty" yaml:"words,omitempty" bson:"words,omitempty"`
	Placement string `json:"placement,omitempty" yaml:"placement,omitempty" bson:"placement,omitempty"`
}

// ProxyTarget addresses a model in a staff segment of the same measure.
type ProxyTarget struct {
	Part  string `json:"part" yaml:"part" bson:"part"`
	Staff int    `json:"staff" yaml:"staff" bson:"staff"`
	Index int    `json:"index" yaml:"index" bson:"index"`
}

// Proxy stands in for a header element owned by another staff. TargetKind
// is captured when the proxy is created so type tests need no lookup.
type Proxy struct {
	Target     ProxyTarget `json:"target" yaml:"target" bson:"target"`
	TargetKind Kind        `json:"targetKind" yaml:"targetKind" bson:"target_kind"`
}

// Chord is a group of simultaneous notes (or a rest) sharing one duration.
type Chord struct {
	Grace bool   `json:"grace,omitempty" yaml:"grace,omitempty" bson:"grace,omitempty"`
	Notes []Note `json:"notes" yaml:"notes" bson:"notes"`
}

// Note is one note head of a chord.
type Note struct {
	Step     string  `json:"step,omitempty" yaml:"step,omitempty" bson:"step,omitempty"`
	Octave   int     `json:"octave,omitempty" yaml:"octave,omitempty" bson:"octave,omitempty"`
	Alter    int     `json:"alter,omitempty" yaml:"alter,omitempty" bson:"alter,omitempty"`
	Staff    int     `json:"staff,omitempty" yaml:"staff,omitempty" bson:"staff,omitempty"`
	Duration int     `json:"duration,omitempty" yaml:"duration,omitempty" bson:"duration,omitempty"`
	Dots     int     `json:"dots,omitempty" yaml:"dots,omitempty" bson:"dots,omitempty"`
	Rest     bool    `json:"rest,omitempty" yaml:"rest,omitempty" bson:"rest,omitempty"`
	DefaultY float64 `json:"defaultY,omitempty" yaml:"defaultY,omitempty" bson:"default_y,omitempty"`
}

// BarStyle is the visual style of a barline.
type BarStyle string

// Bar styles.
const (
	BarStyleRegular    BarStyle = "regular"
	BarStyleLightLight BarStyle = "light-light"
	BarStyleLightHeavy BarStyle = "light-heavy"
)

// Barline ends a measure.
type Barline struct {
	Style BarStyle `json:"style,omitempty" yaml:"style,omitempty" bson:"style,omitempty"`
}

// =============================================================================
// Model Helpers
// =============================================================================

// Clone returns a deep copy of m.
func (m *Model) Clone() *Model {
	c := *m
	if m.Print != nil {
		p := *m.Print
		c.Print = &p
	}
	if m.Attributes != nil {
		c.Attributes = m.Attributes.Clone()
	}
	if m.Sound != nil {
		s := *m.Sound
		c.Sound = &s
	}
	if m.Direction != nil {
		d := *m.Direction
		c.Direction = &d
	}
	if m.Proxy != nil {
		p := *m.Proxy
		c.Proxy = &p
	}
	if m.Chord != nil {
		ch := *m.Chord
		ch.Notes = append([]Note(nil), m.Chord.Notes...)
		c.Chord = &ch
	}
	if m.Barline != nil {
		b := *m.Barline
		c.Barline = &b
	}
	return &c
}

// Clone returns a deep copy of a.
func (a *Attributes) Clone() *Attributes {
	c := *a
	if a.Time != nil {
		t := *a.Time
		t.Beats = append([]int(nil), a.Time.Beats...)
		t.BeatTypes = append([]int(nil), a.Time.BeatTypes...)
		c.Time = &t
	}
	if a.Key != nil {
		k := *a.Key
		c.Key = &k
	}
	c.Clefs = append([]Clef(nil), a.Clefs...)
	return &c
}

// =============================================================================
// Serialization
// =============================================================================

// MarshalJSON writes the model with its "_class" tag.
func (m *Model) MarshalJSON() ([]byte, error) {
	type Alias Model
	return json.Marshal(&struct {
		Class string `json:"_class"`
		*Alias
	}{Class: m.Kind.String(), Alias: (*Alias)(m)})
}

// UnmarshalJSON reads a model and resolves its "_class" tag.
func (m *Model) UnmarshalJSON(data []byte) error {
	type Alias Model
	aux := &struct {
		Class string `json:"_class"`
		*Alias
	}{Alias: (*Alias)(m)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return m.setClass(aux.Class)
}

// MarshalYAML writes the model with its "_class" tag.
func (m *Model) MarshalYAML() (any, error) {
	type Alias Model
	return &struct {
		Class  string `yaml:"_class"`
		*Alias `yaml:",inline"`
	}{Class: m.Kind.String(), Alias: (*Alias)(m)}, nil
}

// UnmarshalYAML reads a model and resolves its "_class" tag.
func (m *Model) UnmarshalYAML(value *yaml.Node) error {
	type Alias Model
	aux := &struct {
		Class  string `yaml:"_class"`
		*Alias `yaml:",inline"`
	}{Alias: (*Alias)(m)}
	if err := value.Decode(aux); err != nil {
		return err
	}
	return m.setClass(aux.Class)
}

func (m *Model) setClass(class string) error {
	if class == "" {
		return fmt.Errorf("model requires a _class")
	}
	kind, ok := ParseKind(class)
	if !ok || kind == KindUnknown {
		return fmt.Errorf("unknown model class %q", class)
	}
	m.Kind = kind
	return nil
}
