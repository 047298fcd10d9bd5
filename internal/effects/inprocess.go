package effects

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// InProcessEngine applies effects using disintegration/imaging, the same
// zero-CGO imaging library esimov-caire depends on for its own blur/adjust
// pipeline (see other_examples manifest) — chosen over govips to match
// tinct's own zero-CGO philosophy (its colour/image packages never link
// libvips).
type InProcessEngine struct{}

// NewInProcessEngine builds an InProcessEngine. It supports every effect
// Kind and is always available.
func NewInProcessEngine() *InProcessEngine { return &InProcessEngine{} }

func (e *InProcessEngine) ID() string { return "in_process" }

func (e *InProcessEngine) Supports(kind Kind) bool {
	switch kind {
	case KindBlur, KindBrightness, KindSaturation, KindGrayscale, KindVignette, KindColorOverlay, KindNegate:
		return true
	default:
		return false
	}
}

func (e *InProcessEngine) IsAvailable(ctx context.Context) bool { return true }

func (e *InProcessEngine) Apply(ctx context.Context, img image.Image, params Params) (image.Image, error) {
	if err := params.Validate(); err != nil {
		return nil, wallcore.NewError(wallcore.ErrEffectFailed, "effects", err.Error(), false, err)
	}

	switch params.Kind {
	case KindBlur:
		return imaging.Blur(img, params.Radius), nil
	case KindBrightness:
		return imaging.AdjustBrightness(img, (params.Factor-1.0)*100), nil
	case KindSaturation:
		return imaging.AdjustSaturation(img, (params.Factor-1.0)*100), nil
	case KindGrayscale:
		return imaging.Grayscale(img), nil
	case KindNegate:
		return imaging.Invert(img), nil
	case KindVignette:
		return applyVignette(img, params.Strength, params.Falloff), nil
	case KindColorOverlay:
		return applyColorOverlay(img, params.OverlayColor, params.OverlayAlpha), nil
	default:
		return nil, wallcore.NewError(wallcore.ErrEffectFailed, "effects", "unsupported effect kind for in_process engine", false, nil)
	}
}

// applyVignette darkens pixels radially outward from the image center.
// strength 0 leaves the image untouched and 1 is a fully-black edge falloff;
// falloff is the exponent on the normalized radial distance, so falloff=1 is
// a linear ramp, falloff=2 a quadratic one (softer near the center), and
// higher values push the darkening further toward the edge.
func applyVignette(img image.Image, strength, falloff float64) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	cx, cy := float64(w)/2, float64(h)/2
	maxDist := math.Hypot(cx, cy)

	out := imaging.Clone(img)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dist := math.Hypot(float64(x)-cx, float64(y)-cy) / maxDist
			factor := 1.0 - strength*math.Pow(dist, falloff)
			if factor < 0 {
				factor = 0
			}
			r, g, b, a := out.At(x, y).RGBA()
			out.Set(x, y, color.RGBA64{
				R: uint16(float64(r) * factor),
				G: uint16(float64(g) * factor),
				B: uint16(float64(b) * factor),
				A: uint16(a),
			})
		}
	}
	return out
}

// applyColorOverlay blends overlay onto img at alpha, a flat tint that mixes
// each pixel linearly toward the overlay color, used to build themed
// wallpaper variants (spec §4.4 color_overlay).
func applyColorOverlay(img image.Image, overlay wallcore.Color, alpha float64) image.Image {
	bounds := img.Bounds()
	out := imaging.Clone(img)
	or, og, ob := float64(overlay.R), float64(overlay.G), float64(overlay.B)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := out.At(x, y).RGBA()
			r8, g8, b8 := float64(r>>8), float64(g>>8), float64(b>>8)
			nr := r8*(1-alpha) + or*alpha
			ng := g8*(1-alpha) + og*alpha
			nb := b8*(1-alpha) + ob*alpha
			out.Set(x, y, color.RGBA{R: uint8(nr), G: uint8(ng), B: uint8(nb), A: uint8(a >> 8)})
		}
	}
	return out
}
