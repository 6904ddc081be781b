package document

import (
	"encoding/json"
	"slices"

	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// Factory creates models and answers type questions about them.
//
// Type tests follow proxies: a Proxy standing in for an Attributes element
// has type Attributes as well as type Proxy.
type Factory struct {
	constructors map[Kind]func() *Model
}

// NewFactory returns a factory that can build every known kind.
func NewFactory() *Factory {
	return &Factory{constructors: map[Kind]func() *Model{
		KindPrint:        func() *Model { return &Model{Kind: KindPrint, Print: &Print{}} },
		KindGrouping:     func() *Model { return &Model{Kind: KindGrouping} },
		KindFiguredBass:  func() *Model { return &Model{Kind: KindFiguredBass} },
		KindAttributes:   func() *Model { return &Model{Kind: KindAttributes, Attributes: &Attributes{}} },
		KindSound:        func() *Model { return &Model{Kind: KindSound, Sound: &Sound{}} },
		KindDirection:    func() *Model { return &Model{Kind: KindDirection, Direction: &Direction{}} },
		KindHarmony:      func() *Model { return &Model{Kind: KindHarmony} },
		KindProxy:        func() *Model { return &Model{Kind: KindProxy, Proxy: &Proxy{}} },
		KindSpacer:       func() *Model { return &Model{Kind: KindSpacer} },
		KindChord:        func() *Model { return &Model{Kind: KindChord, Chord: &Chord{}} },
		KindVisualCursor: func() *Model { return &Model{Kind: KindVisualCursor} },
		KindBarline:      func() *Model { return &Model{Kind: KindBarline, Barline: &Barline{}} },
	}}
}

// Create returns a new model of the given kind with an empty payload.
func (f *Factory) Create(kind Kind) (*Model, error) {
	ctor, ok := f.constructors[kind]
	if !ok {
		return nil, errors.New(errors.ErrCodeMissingCapability, "no constructor for model kind %s", kind)
	}
	return ctor(), nil
}

// MustCreate is like Create but panics for unregistered kinds. It is meant
// for static kinds known to be registered.
func (f *Factory) MustCreate(kind Kind) *Model {
	m, err := f.Create(kind)
	if err != nil {
		panic(err)
	}
	return m
}

// CreateProxy returns a proxy for the model at target, which has kind
// targetKind.
func (f *Factory) CreateProxy(target ProxyTarget, targetKind Kind) *Model {
	m := f.MustCreate(KindProxy)
	m.Proxy.Target = target
	m.Proxy.TargetKind = targetKind
	m.StaffIdx = target.Staff
	return m
}

// ModelHasType reports whether m is one of kinds, directly or through a proxy.
func (f *Factory) ModelHasType(m *Model, kinds ...Kind) bool {
	if m == nil {
		return false
	}
	if slices.Contains(kinds, m.Kind) {
		return true
	}
	return m.Kind == KindProxy && m.Proxy != nil && slices.Contains(kinds, m.Proxy.TargetKind)
}

// Search returns the models of the given kinds that share a timestep with
// models[idx]. It first walks back over zero-duration models, then collects
// matches forward until a non-matching model with a duration.
func (f *Factory) Search(models []*Model, idx int, kinds ...Kind) []*Model {
	if len(models) == 0 {
		return nil
	}
	idx = min(max(idx, 0), len(models)-1)
	for idx > 0 && models[idx-1].DivCount == 0 {
		idx--
	}
	var found []*Model
	for i := idx; i < len(models); i++ {
		if f.ModelHasType(models[i], kinds...) {
			found = append(found, models[i])
		} else if models[i].DivCount != 0 {
			break
		}
	}
	return found
}

// IndexOf returns the position of m in models, or -1.
func (f *Factory) IndexOf(models []*Model, m *Model) int {
	return slices.Index(models, m)
}

// FromSpec decodes a single model from its JSON form, which must carry a
// "_class" tag naming the kind.
func (f *Factory) FromSpec(raw []byte) (*Model, error) {
	var probe struct {
		Class string `json:"_class"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode model spec")
	}
	if probe.Class == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "model spec requires a _class")
	}
	kind, ok := ParseKind(probe.Class)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown model class %q", probe.Class)
	}
	m, err := f.Create(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s spec", probe.Class)
	}
	return m, nil
}
