package wallcore

import "fmt"

// PaletteSize is the fixed number of ANSI terminal slots in a Palette.
const PaletteSize = 16

// Provenance records where a Palette came from, so a regenerated palette
// can be checked for determinism and a stochastic backend can be replayed.
type Provenance struct {
	SourceImageAbsolutePath string
	BackendID               string
	GeneratedAtUTC          string // RFC3339; string to keep the type trivially comparable/serializable
	Seed                    int64  // only meaningful for stochastic backends
}

// Palette is exactly 16 ordered ANSI colors plus three distinguished colors.
// See spec §3 for the invariants Palettes must satisfy; backends are
// responsible for upholding them (ValidatePalette checks the structural
// ones mechanically).
type Palette struct {
	Colors     [PaletteSize]Color
	Background Color
	Foreground Color
	Cursor     Color
	Provenance Provenance
}

// ValidatePalette checks the structural invariants from spec §3 that don't
// require knowledge of the source image: well-formed colors always hold by
// construction (the Color type has no invalid state), so the only checks
// left are background != foreground and a non-empty backend id.
func ValidatePalette(p *Palette) error {
	if p.Background == p.Foreground {
		return fmt.Errorf("palette invalid: background equals foreground (%s)", p.Background.Hex())
	}
	if p.Provenance.BackendID == "" {
		return fmt.Errorf("palette invalid: missing backend id in provenance")
	}
	return nil
}

// ExpandToSixteen deterministically expands a set of fewer than 16 distinct
// colors up to exactly 16 by cycling through the input colors and shifting
// lightness by fixed steps each pass, per spec §4.2's edge-case policy. If
// colors is empty, the whole palette is synthesized as grayscale.
func ExpandToSixteen(colors []Color) [PaletteSize]Color {
	var out [PaletteSize]Color
	if len(colors) == 0 {
		for i := range out {
			level := uint8(i * 255 / (PaletteSize - 1))
			out[i] = Color{R: level, G: level, B: level}
		}
		return out
	}

	lightnessSteps := []float64{0, 0.12, -0.12, 0.24, -0.24, 0.36, -0.36}
	idx := 0
	for idx < PaletteSize {
		pass := idx / len(colors)
		delta := lightnessSteps[pass%len(lightnessSteps)]
		src := colors[idx%len(colors)]
		out[idx] = src.WithLightnessShift(delta)
		idx++
	}
	return out
}

// IsMonochromatic reports whether all given colors have near-zero
// saturation, per spec §8's monochrome boundary case.
func IsMonochromatic(colors []Color) bool {
	const saturationThreshold = 0.02
	for _, c := range colors {
		if c.Saturation() > saturationThreshold {
			return false
		}
	}
	return true
}
