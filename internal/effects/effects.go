// Package effects applies named image effects (blur, brightness, saturation,
// grayscale, vignette, color_overlay, negate) through pluggable engines,
// keyed (effect kind, engine id), per spec §4.4. The registry shape is
// grounded on Skryldev-image-processor/core/registry.go's DefaultRegistry
// (RWMutex-guarded map-of-maps, register/lookup-by-key).
package effects

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Kind names an effect (spec §4.4).
type Kind string

const (
	KindBlur         Kind = "blur"
	KindBrightness   Kind = "brightness"
	KindSaturation   Kind = "saturation"
	KindGrayscale    Kind = "grayscale"
	KindVignette     Kind = "vignette"
	KindColorOverlay Kind = "color_overlay"
	KindNegate       Kind = "negate"
)

// Params carries the bounded parameters for one effect application. Only the
// fields relevant to Kind are consulted; engines validate their own inputs.
type Params struct {
	Kind         Kind
	Radius       float64        // blur: pixel radius, >= 0
	Factor       float64        // brightness/saturation: >= 0, 1.0 identity
	Strength     float64        // vignette: 0.0..1.0
	Falloff      float64        // vignette: > 0, exponent on the radial mask
	OverlayColor wallcore.Color // color_overlay
	OverlayAlpha float64        // color_overlay: 0.0..1.0
}

// Validate checks Params against the bounds spec §4.4 defines per kind.
func (p Params) Validate() error {
	switch p.Kind {
	case KindBlur:
		if p.Radius < 0 {
			return fmt.Errorf("blur radius must be >= 0, got %f", p.Radius)
		}
	case KindBrightness, KindSaturation:
		if p.Factor < 0 {
			return fmt.Errorf("%s factor must be >= 0, got %f", p.Kind, p.Factor)
		}
	case KindVignette:
		if p.Strength < 0 || p.Strength > 1 {
			return fmt.Errorf("vignette strength must be within [0,1], got %f", p.Strength)
		}
		if p.Falloff <= 0 {
			return fmt.Errorf("vignette falloff must be > 0, got %f", p.Falloff)
		}
	case KindColorOverlay:
		if p.OverlayAlpha < 0 || p.OverlayAlpha > 1 {
			return fmt.Errorf("color_overlay alpha must be within [0,1], got %f", p.OverlayAlpha)
		}
	case KindGrayscale, KindNegate:
		// no parameters to validate
	default:
		return fmt.Errorf("unknown effect kind %q", p.Kind)
	}
	return nil
}

// Engine applies one or more effect kinds to an image.
type Engine interface {
	ID() string
	Supports(kind Kind) bool
	IsAvailable(ctx context.Context) bool
	Apply(ctx context.Context, img image.Image, params Params) (image.Image, error)
}

// Registry looks up an Engine by (kind, engine id), grounded on
// Skryldev-image-processor's DefaultRegistry RWMutex map-of-maps shape.
type Registry struct {
	mu      sync.RWMutex
	engines map[Kind]map[string]Engine
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[Kind]map[string]Engine)}
}

// Register adds engine under each of the given kinds; engine.Supports is not
// consulted.
func (r *Registry) Register(engine Engine, kinds ...Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		if r.engines[k] == nil {
			r.engines[k] = make(map[string]Engine)
		}
		r.engines[k][engine.ID()] = engine
	}
}

// Get looks up the engine registered for (kind, engineID).
func (r *Registry) Get(kind Kind, engineID string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.engines[kind]
	if !ok {
		return nil, false
	}
	e, ok := m[engineID]
	return e, ok
}

// Resolve picks the preferred engine for kind if it is registered and
// available, otherwise probes the rest of the registered engines for that
// kind in order and returns the first available one (spec §4.4 fallback
// rule: prefer the configured engine, degrade gracefully rather than fail
// the whole variant).
func (r *Registry) Resolve(ctx context.Context, kind Kind, preferred string, order []string) (Engine, error) {
	if e, ok := r.Get(kind, preferred); ok && e.IsAvailable(ctx) {
		return e, nil
	}
	for _, id := range order {
		if e, ok := r.Get(kind, id); ok && e.IsAvailable(ctx) {
			return e, nil
		}
	}
	return nil, wallcore.NewEffectError(wallcore.EffectReasonNoEngine, "effects",
		fmt.Sprintf("no available engine for effect %q (preferred %q)", kind, preferred), false, nil)
}
