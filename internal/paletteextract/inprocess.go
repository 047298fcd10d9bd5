package paletteextract

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// InProcessBackend extracts palettes without shelling out to any external
// binary, selecting among three sampling/clustering algorithms. The pixel
// sampling strategy and the k-means path are adapted from tinct's
// internal/colour/kmeans.go KMeansExtractor; median-cut and octree are new
// here — tinct only stubs those two out as "not yet implemented", but the
// spec requires all three to be real backend choices (spec §4.2).
type InProcessBackend struct{}

// NewInProcessBackend builds an InProcessBackend. It is always available.
func NewInProcessBackend() *InProcessBackend { return &InProcessBackend{} }

func (b *InProcessBackend) ID() string { return "in_process" }

func (b *InProcessBackend) IsAvailable(ctx context.Context) bool { return true }

func (b *InProcessBackend) Extract(ctx context.Context, imagePath string, img image.Image, opts Options) (*wallcore.Palette, error) {
	if img == nil {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract", "nil image", false, nil)
	}
	count := opts.ColorCount
	if count <= 0 {
		count = wallcore.PaletteSize
	}

	pixels := samplePixels(img)
	if len(pixels) == 0 {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract", "no pixels sampled from image", false, nil)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))

	var dominant []wallcore.Color
	var err error
	switch opts.Algorithm {
	case "", "kmeans":
		dominant, err = extractKMeans(pixels, count, rng)
	case "median_cut":
		dominant, err = extractMedianCut(pixels, count)
	case "octree":
		dominant, err = extractOctree(pixels, count)
	default:
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract", fmt.Sprintf("unknown algorithm %q", opts.Algorithm), false, nil)
	}
	if err != nil {
		return nil, err
	}

	if wallcore.IsMonochromatic(dominant) {
		dominant = monochromeRamp(dominant)
	}

	colors16 := wallcore.ExpandToSixteen(dominant)
	bg, fg := selectBackgroundForeground(colors16, dominant, opts.Style)
	cursor := fg

	return &wallcore.Palette{
		Colors:     colors16,
		Background: bg,
		Foreground: fg,
		Cursor:     cursor,
		Provenance: wallcore.Provenance{
			SourceImageAbsolutePath: imagePath,
			BackendID:               b.ID() + ":" + algoOrDefault(opts.Algorithm),
			GeneratedAtUTC:          time.Now().UTC().Format(time.RFC3339),
			Seed:                    seed,
		},
	}, nil
}

func algoOrDefault(a string) string {
	if a == "" {
		return "kmeans"
	}
	return a
}

// samplePixels grid-samples large images down to a fixed budget, grounded on
// tinct's samplePixels in internal/colour/kmeans.go.
func samplePixels(img image.Image) []color.Color {
	const maxSamples = 2000
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	total := width * height

	if total <= maxSamples {
		pixels := make([]color.Color, 0, total)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				pixels = append(pixels, img.At(x, y))
			}
		}
		return pixels
	}

	step := int(math.Sqrt(float64(total) / float64(maxSamples)))
	if step < 1 {
		step = 1
	}
	pixels := make([]color.Color, 0, maxSamples)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			pixels = append(pixels, img.At(x, y))
			if len(pixels) >= maxSamples {
				return pixels
			}
		}
	}
	return pixels
}

func toWallcoreColor(c color.Color) wallcore.Color {
	r, g, b, _ := c.RGBA()
	return wallcore.Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

func extractKMeans(pixels []color.Color, count int, rng *rand.Rand) ([]wallcore.Color, error) {
	points := make([]point3D, len(pixels))
	for i, c := range pixels {
		wc := toWallcoreColor(c)
		points[i] = point3D{R: float64(wc.R), G: float64(wc.G), B: float64(wc.B)}
	}

	k := count
	if k > len(points) {
		k = len(points)
	}
	centroids, weights := kmeansCluster(points, k, rng)

	type weighted struct {
		c wallcore.Color
		w float64
	}
	out := make([]weighted, len(centroids))
	for i, c := range centroids {
		out[i] = weighted{c: wallcore.Color{R: clampByte(c.R), G: clampByte(c.G), B: clampByte(c.B)}, w: weights[i]}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].w > out[j].w })

	result := make([]wallcore.Color, len(out))
	for i, o := range out {
		result[i] = o.c
	}
	return result, nil
}

func clampByte(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}

// selectBackgroundForeground picks a background (dominant color, biased by
// Style) and the highest-contrast foreground against it, grounded on tinct's
// internal/colour/background.go selectBackground and
// internal/colour/foreground.go selectForeground (its WCAG contrast-ratio
// maximization, simplified to operate over the already-expanded 16-slot
// palette rather than a hint-aware CategorisedPalette).
func selectBackgroundForeground(full [16]wallcore.Color, dominant []wallcore.Color, style Style) (bg, fg wallcore.Color) {
	if len(dominant) == 0 {
		return full[0], full[15]
	}

	bg = dominant[0]
	switch style {
	case StyleDark:
		for _, c := range dominant {
			if c.Luminance() < bg.Luminance() {
				bg = c
			}
		}
	case StyleLight:
		for _, c := range dominant {
			if c.Luminance() > bg.Luminance() {
				bg = c
			}
		}
	default:
		// StyleAuto: dominant[0] is already the heaviest cluster by weight.
	}

	maxContrast := -1.0
	fg = full[0]
	for _, c := range full {
		if c == bg {
			continue
		}
		if cr := contrastRatio(c, bg); cr > maxContrast {
			maxContrast = cr
			fg = c
		}
	}
	return bg, fg
}

// contrastRatio implements the WCAG relative-luminance contrast formula,
// grounded on tinct's internal/colour ContrastRatio helper.
func contrastRatio(a, b wallcore.Color) float64 {
	la, lb := a.Luminance()+0.05, b.Luminance()+0.05
	if la < lb {
		la, lb = lb, la
	}
	return la / lb
}

// monochromeRamp synthesizes a gray ramp when the dominant colors are all
// near-neutral, so downstream palette expansion has real lightness spread to
// work with instead of 16 near-identical swatches (spec §4.2 edge case).
func monochromeRamp(in []wallcore.Color) []wallcore.Color {
	if len(in) == 0 {
		return in
	}
	base := in[0]
	steps := []float64{-0.4, -0.25, -0.1, 0, 0.1, 0.25, 0.4}
	out := make([]wallcore.Color, 0, len(steps))
	for _, s := range steps {
		out = append(out, base.WithLightnessShift(s))
	}
	return out
}
