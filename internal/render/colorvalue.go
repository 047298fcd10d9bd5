// Package render turns a wallcore.Palette into concrete output files: the
// per-format renderers (json/yaml/toml/css/shell) and a text/template engine
// for user-supplied templates. ColorValue/PaletteHelper are grounded on
// tinct/internal/colour/palette_helpers.go, simplified from tinct's
// role-based categorisation down to the spec's fixed 16-slot-plus-three
// palette shape.
package render

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// ColorValue wraps a wallcore.Color with the format accessors templates use,
// grounded on tinct's ColorValue/Format(ColorFormat) pattern.
type ColorValue struct {
	c     wallcore.Color
	index int
	alpha float64
}

// NewColorValue builds a ColorValue for the slot at index (use -1 for the
// distinguished background/foreground/cursor slots, which have no index).
func NewColorValue(c wallcore.Color, index int) ColorValue {
	return ColorValue{c: c, index: index, alpha: 1.0}
}

// WithAlpha returns a copy of cv with alpha (0.0-1.0) set, used by the RGBA
// accessor and by templates generating translucent variants.
func (cv ColorValue) WithAlpha(alpha float64) ColorValue {
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	cv.alpha = alpha
	return cv
}

func (cv ColorValue) Hex() string       { return cv.c.Hex() }
func (cv ColorValue) HexNoHash() string { return strings.TrimPrefix(cv.c.Hex(), "#") }
func (cv ColorValue) RGB() string       { return fmt.Sprintf("rgb(%d,%d,%d)", cv.c.R, cv.c.G, cv.c.B) }
func (cv ColorValue) RGBA() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%.2f)", cv.c.R, cv.c.G, cv.c.B, cv.alpha)
}
func (cv ColorValue) RGBDecimal() string { return fmt.Sprintf("%d,%d,%d", cv.c.R, cv.c.G, cv.c.B) }
func (cv ColorValue) R() uint8           { return cv.c.R }
func (cv ColorValue) G() uint8           { return cv.c.G }
func (cv ColorValue) B() uint8           { return cv.c.B }
func (cv ColorValue) Index() int         { return cv.index }
func (cv ColorValue) Color() wallcore.Color { return cv.c }

// PaletteHelper is the single value every template and format renderer
// operates over, grounded on tinct's PaletteHelper (Get/GetByIndex/AllColors
// convenience accessors, here over the spec's fixed slot names rather than
// an open role set).
type PaletteHelper struct {
	palette    *wallcore.Palette
	indexed    []ColorValue
	background ColorValue
	foreground ColorValue
	cursor     ColorValue
}

// NewPaletteHelper builds a PaletteHelper for p. Call once per render.
func NewPaletteHelper(p *wallcore.Palette) *PaletteHelper {
	ph := &PaletteHelper{
		palette:    p,
		background: NewColorValue(p.Background, -1),
		foreground: NewColorValue(p.Foreground, -1),
		cursor:     NewColorValue(p.Cursor, -1),
	}
	ph.indexed = make([]ColorValue, len(p.Colors))
	for i, c := range p.Colors {
		ph.indexed[i] = NewColorValue(c, i)
	}
	return ph
}

// GetByIndex returns the palette color at the given slot (0-15).
func (ph *PaletteHelper) GetByIndex(i int) (ColorValue, bool) {
	if i < 0 || i >= len(ph.indexed) {
		return ColorValue{}, false
	}
	return ph.indexed[i], true
}

func (ph *PaletteHelper) Background() ColorValue { return ph.background }
func (ph *PaletteHelper) Foreground() ColorValue { return ph.foreground }
func (ph *PaletteHelper) Cursor() ColorValue     { return ph.cursor }
func (ph *PaletteHelper) AllColors() []ColorValue { return ph.indexed }
func (ph *PaletteHelper) Count() int             { return len(ph.indexed) }
func (ph *PaletteHelper) Palette() *wallcore.Palette { return ph.palette }
func (ph *PaletteHelper) SourceImagePath() string {
	return ph.palette.Provenance.SourceImageAbsolutePath
}
