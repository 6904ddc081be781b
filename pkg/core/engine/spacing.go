package engine

// Spacing holds the engraving constants used by the reducer, in tenths of a
// staff space. The zero value is not useful; start from DefaultSpacing.
type Spacing struct {
	// MergeNudge separates elements at different divisions that would
	// otherwise overlap after merging.
	MergeNudge float64 `toml:"merge_nudge"`
	// EndPadding is added after the last element when a measure is padded.
	EndPadding float64 `toml:"end_padding"`

	ChordBase        float64 `toml:"chord_base"`
	GraceChordBase   float64 `toml:"grace_chord_base"`
	LogSpring        float64 `toml:"log_spring"`
	DotWidth         float64 `toml:"dot_width"`
	AccidentalWidth  float64 `toml:"accidental_width"`
	PaddingTopBase   float64 `toml:"padding_top_base"`
	PaddingBelowBase float64 `toml:"padding_bottom_base"`

	ClefLineStart   float64 `toml:"clef_line_start"`
	ClefIndent      float64 `toml:"clef_indent"`
	ClefMeasure     float64 `toml:"clef_measure"`
	ClefMidMeasure  float64 `toml:"clef_mid_measure"`
	KeySpacing      float64 `toml:"key_spacing"`
	KeyAccidental   float64 `toml:"key_accidental"`
	TimeSpacing     float64 `toml:"time_spacing"`
	TimeNumeral     float64 `toml:"time_numeral"`
	BarlineRegular  float64 `toml:"barline_regular"`
	BarlineDouble   float64 `toml:"barline_double"`
	BarlineFinal    float64 `toml:"barline_final"`
	SenzaMisuraBeat int     `toml:"senza_misura_beats"`
}

// DefaultSpacing returns the standard engraving constants.
func DefaultSpacing() Spacing {
	return Spacing{
		MergeNudge: 20,
		EndPadding: 15,

		ChordBase:        22.8,
		GraceChordBase:   11.4,
		LogSpring:        20,
		DotWidth:         6,
		AccidentalWidth:  7.3,
		PaddingTopBase:   50,
		PaddingBelowBase: 25,

		ClefLineStart:   24 + 12.5,
		ClefIndent:      4.2,
		ClefMeasure:     12.5,
		ClefMidMeasure:  15,
		KeySpacing:      10,
		KeyAccidental:   10.4,
		TimeSpacing:     12.5,
		TimeNumeral:     28,
		BarlineRegular:  2,
		BarlineDouble:   4.5,
		BarlineFinal:    7.5,
		SenzaMisuraBeat: 1000000,
	}
}
