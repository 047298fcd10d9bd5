package variants

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmylchreest/wallhue/internal/effects"
	"github.com/jmylchreest/wallhue/internal/wallcore"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	return img
}

// countingEngine fails its first N calls then succeeds, to exercise
// generateOne's "retry once on non-NoEngine EffectFailed" policy.
type countingEngine struct {
	mu        sync.Mutex
	calls     int
	failUntil int
}

func (e *countingEngine) ID() string                              { return "counting" }
func (e *countingEngine) Supports(effects.Kind) bool               { return true }
func (e *countingEngine) IsAvailable(context.Context) bool         { return true }
func (e *countingEngine) Apply(ctx context.Context, img image.Image, p effects.Params) (image.Image, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()
	if call <= e.failUntil {
		return nil, wallcore.NewEffectError(wallcore.EffectReasonOther, "effects", "transient failure", true, nil)
	}
	return img, nil
}

func newRegistryWithEngine(engine effects.Engine) *effects.Registry {
	reg := effects.NewRegistry()
	reg.Register(engine, effects.KindGrayscale)
	return reg
}

func TestGenerateRetriesOnceThenSucceeds(t *testing.T) {
	engine := &countingEngine{failUntil: 1}
	gen := NewGenerator(newRegistryWithEngine(engine), 1, []string{"counting"})

	decl := Declaration{Name: "dark", Engine: "counting", Effects: []effects.Params{{Kind: effects.KindGrayscale}}}
	results := gen.Generate(context.Background(), testImage(), t.TempDir(), []Declaration{decl})

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("results[0].Err = %v, want nil after one retry", results[0].Err)
	}
	if engine.calls != 2 {
		t.Errorf("engine.calls = %d, want 2 (initial attempt + one retry)", engine.calls)
	}
}

func TestGenerateDoesNotRetryPastOnce(t *testing.T) {
	engine := &countingEngine{failUntil: 100}
	gen := NewGenerator(newRegistryWithEngine(engine), 1, []string{"counting"})

	decl := Declaration{Name: "dark", Engine: "counting", Effects: []effects.Params{{Kind: effects.KindGrayscale}}}
	results := gen.Generate(context.Background(), testImage(), t.TempDir(), []Declaration{decl})

	if results[0].Err == nil {
		t.Fatalf("results[0].Err = nil, want error (engine never succeeds)")
	}
	if engine.calls != 2 {
		t.Errorf("engine.calls = %d, want 2 (one retry only, not unbounded)", engine.calls)
	}
}

func TestGenerateNoEngineFailureIsNotRetried(t *testing.T) {
	reg := effects.NewRegistry() // no engine registered for any kind
	gen := NewGenerator(reg, 1, nil)

	decl := Declaration{Name: "dark", Effects: []effects.Params{{Kind: effects.KindGrayscale}}}
	results := gen.Generate(context.Background(), testImage(), t.TempDir(), []Declaration{decl})

	if results[0].Err == nil || results[0].Err.EffectReason != wallcore.EffectReasonNoEngine {
		t.Fatalf("results[0].Err = %v, want EffectFailed(NoEngine)", results[0].Err)
	}
}

func TestGenerateCriticalFailureIsNotRecoverable(t *testing.T) {
	reg := effects.NewRegistry()
	gen := NewGenerator(reg, 1, nil)

	decl := Declaration{Name: "dark", Critical: true, Effects: []effects.Params{{Kind: effects.KindGrayscale}}}
	results := gen.Generate(context.Background(), testImage(), t.TempDir(), []Declaration{decl})

	if results[0].Err == nil {
		t.Fatalf("results[0].Err = nil, want error")
	}
	if results[0].Err.Recoverable {
		t.Errorf("results[0].Err.Recoverable = true, want false for a critical variant's failure")
	}
	if !results[0].Critical {
		t.Errorf("results[0].Critical = false, want true")
	}
}

func TestGenerateNonCriticalFailureIsRecoverable(t *testing.T) {
	reg := effects.NewRegistry()
	gen := NewGenerator(reg, 1, nil)

	decl := Declaration{Name: "dark", Critical: false, Effects: []effects.Params{{Kind: effects.KindGrayscale}}}
	results := gen.Generate(context.Background(), testImage(), t.TempDir(), []Declaration{decl})

	if results[0].Err == nil || !results[0].Err.Recoverable {
		t.Fatalf("results[0].Err = %v, want a recoverable error for a non-critical variant", results[0].Err)
	}
}

func TestGenerateWritesOutputFile(t *testing.T) {
	engine := &countingEngine{}
	gen := NewGenerator(newRegistryWithEngine(engine), 2, []string{"counting"})
	outDir := t.TempDir()

	decls := []Declaration{
		{Name: "a", Engine: "counting", Effects: []effects.Params{{Kind: effects.KindGrayscale}}},
		{Name: "b", Engine: "counting", Effects: []effects.Params{{Kind: effects.KindGrayscale}}},
	}
	results := gen.Generate(context.Background(), testImage(), outDir, decls)

	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("variant %s failed: %v", r.Name, r.Err)
		}
		if _, err := os.Stat(filepath.Join(outDir, r.Name+".png")); err != nil {
			t.Errorf("output file for %s missing: %v", r.Name, err)
		}
	}
}
