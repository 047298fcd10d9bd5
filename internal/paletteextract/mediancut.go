package paletteextract

import (
	"image/color"
	"sort"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// mcBox is an axis-aligned box of pixels in RGB space, the unit the
// median-cut algorithm repeatedly bisects.
type mcBox struct {
	pixels []color.Color
}

// rangeOf returns the per-channel min/max spread of the box's pixels.
func (b mcBox) rangeOf() (rr, rg, rb uint8) {
	var minR, minG, minB uint8 = 255, 255, 255
	var maxR, maxG, maxB uint8
	for _, p := range b.pixels {
		c := toWallcoreColor(p)
		if c.R < minR {
			minR = c.R
		}
		if c.R > maxR {
			maxR = c.R
		}
		if c.G < minG {
			minG = c.G
		}
		if c.G > maxG {
			maxG = c.G
		}
		if c.B < minB {
			minB = c.B
		}
		if c.B > maxB {
			maxB = c.B
		}
	}
	return maxR - minR, maxG - minG, maxB - minB
}

func (b mcBox) widestChannel() int {
	rr, rg, rb := b.rangeOf()
	switch {
	case rr >= rg && rr >= rb:
		return 0
	case rg >= rr && rg >= rb:
		return 1
	default:
		return 2
	}
}

func (b mcBox) average() wallcore.Color {
	var sumR, sumG, sumB int
	for _, p := range b.pixels {
		c := toWallcoreColor(p)
		sumR += int(c.R)
		sumG += int(c.G)
		sumB += int(c.B)
	}
	n := len(b.pixels)
	if n == 0 {
		return wallcore.Color{}
	}
	return wallcore.Color{R: uint8(sumR / n), G: uint8(sumG / n), B: uint8(sumB / n)}
}

// extractMedianCut implements Paul Heckbert's median-cut color quantization:
// repeatedly split the most populous box at the median pixel along its
// widest channel, until count boxes exist, then average each box.
// tinct stubs this algorithm out entirely (internal/colour's registry lists
// "median_cut" but has no implementation); this is a from-scratch
// implementation in the same extractor-function shape as
// KMeansExtractor.Extract.
func extractMedianCut(pixels []color.Color, count int) ([]wallcore.Color, error) {
	if count < 1 {
		count = 1
	}
	boxes := []mcBox{{pixels: pixels}}

	for len(boxes) < count {
		// Split the box with the largest population; ties broken by
		// insertion order, which keeps the algorithm deterministic.
		splitIdx := -1
		splitSize := 0
		for i, b := range boxes {
			if len(b.pixels) > 1 && len(b.pixels) > splitSize {
				splitSize = len(b.pixels)
				splitIdx = i
			}
		}
		if splitIdx == -1 {
			break // every remaining box has a single pixel, can't subdivide further
		}

		box := boxes[splitIdx]
		channel := box.widestChannel()
		sorted := append([]color.Color(nil), box.pixels...)
		sort.Slice(sorted, func(i, j int) bool {
			ci, cj := toWallcoreColor(sorted[i]), toWallcoreColor(sorted[j])
			switch channel {
			case 0:
				return ci.R < cj.R
			case 1:
				return ci.G < cj.G
			default:
				return ci.B < cj.B
			}
		})

		mid := len(sorted) / 2
		left := mcBox{pixels: sorted[:mid]}
		right := mcBox{pixels: sorted[mid:]}

		boxes[splitIdx] = left
		boxes = append(boxes, right)
	}

	out := make([]wallcore.Color, len(boxes))
	for i, b := range boxes {
		out[i] = b.average()
	}
	return out, nil
}
