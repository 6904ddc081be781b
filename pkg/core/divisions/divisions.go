// Package divisions rescales segments onto a shared rhythmic unit.
//
// Durations in a segment are integer counts of the segment's Divisions (the
// number of units per quarter note). Before a line can be laid out, every
// segment must agree on one unit so that counts from different voices and
// staves are directly comparable. [Normalize] picks the least common
// multiple of all units and scales each model's counts to it.
package divisions

import (
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// Mismatch records an attributes element whose declared divisions do not
// divide the common unit. Its segment keeps scaling by the segment ratio.
type Mismatch struct {
	Part      string
	Owner     int
	OwnerType document.OwnerType
	Index     int
	Declared  int
	Unit      int
}

// Result is the outcome of a normalization.
type Result struct {
	Unit       int
	Mismatches []Mismatch
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// LCM returns the least common multiple of a and b.
// LCM(a, 0) is a, and LCM(0, 0) is 0.
func LCM(a, b int) int {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	return a / GCD(a, b) * b
}

// Unit returns the LCM of every segment's divisions.
func Unit(segments []*document.Segment) (int, error) {
	unit := 0
	for _, s := range segments {
		if s == nil {
			continue
		}
		if s.Divisions < 0 {
			return 0, errors.New(errors.ErrCodeInvalidNumber,
				"segment %s/%s %d has invalid divisions %d", s.Part, s.OwnerType, s.Owner, s.Divisions)
		}
		unit = LCM(unit, s.Divisions)
	}
	return unit, nil
}

// Normalize rescales segments in place so they share one divisions unit.
//
// The unit is the LCM of factor and every segment's divisions, so each
// segment scales by a whole ratio. A zero factor contributes nothing. Each model's DivCount, each chord note's Duration and each
// attributes element's Divisions are scaled to the unit. Negative divisions
// anywhere fail with INVALID_NUMBER before anything is modified.
func Normalize(segments []*document.Segment, factor int) (Result, error) {
	if factor < 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidNumber, "invalid divisions factor %d", factor)
	}
	if err := check(segments); err != nil {
		return Result{}, err
	}

	unit, err := Unit(segments)
	if err != nil {
		return Result{}, err
	}
	unit = LCM(factor, unit)
	res := Result{Unit: unit}
	if unit == 0 {
		return res, nil
	}

	for _, s := range segments {
		if s == nil {
			continue
		}
		res.Mismatches = append(res.Mismatches, scale(s, unit)...)
	}
	return res, nil
}

func check(segments []*document.Segment) error {
	for _, s := range segments {
		if s == nil {
			continue
		}
		if s.Divisions < 0 {
			return errors.New(errors.ErrCodeInvalidNumber,
				"segment %s/%s %d has invalid divisions %d", s.Part, s.OwnerType, s.Owner, s.Divisions)
		}
		for i, m := range s.Models {
			if m.DivCount < 0 {
				return errors.New(errors.ErrCodeInvalidNumber,
					"model %d of segment %s/%s %d has invalid divCount %d", i, s.Part, s.OwnerType, s.Owner, m.DivCount)
			}
			if m.Attributes != nil && m.Attributes.Divisions < 0 {
				return errors.New(errors.ErrCodeInvalidNumber,
					"attributes %d of segment %s/%s %d declare invalid divisions %d",
					i, s.Part, s.OwnerType, s.Owner, m.Attributes.Divisions)
			}
		}
	}
	return nil
}

// scale converts one segment to unit. A segment without divisions is
// adopted as-is.
func scale(s *document.Segment, unit int) []Mismatch {
	ratio := 1
	if s.Divisions > 0 {
		ratio = unit / s.Divisions
	}
	s.Divisions = unit

	var mismatches []Mismatch
	for i, m := range s.Models {
		if m.Kind == document.KindAttributes && m.Attributes != nil && m.Attributes.Divisions > 0 {
			declared := m.Attributes.Divisions
			if unit%declared == 0 {
				ratio = unit / declared
			} else {
				mismatches = append(mismatches, Mismatch{
					Part:      s.Part,
					Owner:     s.Owner,
					OwnerType: s.OwnerType,
					Index:     i,
					Declared:  declared,
					Unit:      unit,
				})
			}
			m.Attributes.Divisions = unit
		}
		m.DivCount *= ratio
		if m.Chord != nil {
			for j := range m.Chord.Notes {
				m.Chord.Notes[j].Duration *= ratio
			}
		}
	}
	return mismatches
}

// Quarters returns the musical length of a model in quarter notes.
func Quarters(m *document.Model, s *document.Segment) float64 {
	if s.Divisions == 0 {
		return 0
	}
	return float64(m.DivCount) / float64(s.Divisions)
}
