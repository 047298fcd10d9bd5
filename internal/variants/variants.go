// Package variants generates the declared set of effect-applied wallpaper
// images from a single source image, one output file per variant, with a
// concurrency-capped worker pool. Grounded on
// Skryldev-image-processor/core/processor.go's Processor (runtime.NumCPU()
// default worker count, sync.WaitGroup-drained job queue), adapted from a
// long-lived job queue into a one-shot fan-out-and-join over a fixed set of
// variants (spec §4.5).
package variants

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/jmylchreest/wallhue/internal/effects"
	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Declaration names one variant to produce: an output filename and the
// ordered list of effects to apply in sequence.
type Declaration struct {
	Name     string
	Effects  []effects.Params
	Engine   string // preferred engine id; empty means registry default order
	Critical bool   // spec §4.5: a critical variant's failure fails the set
}

// Result records the outcome of producing a single variant.
type Result struct {
	Name       string
	OutputPath string
	Err        *wallcore.StructuredError
	Critical   bool
}

// Generator produces a Declaration set against a single source image.
type Generator struct {
	registry    *effects.Registry
	concurrency int
	engineOrder []string
}

// NewGenerator builds a Generator. concurrency <= 0 defaults to
// runtime.NumCPU()-1, floored at 1, matching
// Skryldev-image-processor's Processor.New default worker count policy
// (with the -1 adjustment from spec §4.5, which reserves one core for the
// orchestrator/cache goroutines driving the rest of the pipeline).
func NewGenerator(registry *effects.Registry, concurrency int, engineOrder []string) *Generator {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU() - 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Generator{registry: registry, concurrency: concurrency, engineOrder: engineOrder}
}

// Generate produces every declared variant from src into outDir, one file
// per declaration, bounded to g.concurrency concurrent workers. A failed
// variant never stops the rest of the batch; each Result carries its
// declaration's Critical flag and the caller inspects them to decide
// overall success (spec §4.5's partial-VariantSet reporting contract).
func (g *Generator) Generate(ctx context.Context, src image.Image, outDir string, declarations []Declaration) []Result {
	jobs := make(chan Declaration)
	results := make([]Result, len(declarations))

	var wg sync.WaitGroup
	var mu sync.Mutex
	indexByName := make(map[string]int, len(declarations))
	for i, d := range declarations {
		indexByName[d.Name] = i
	}

	worker := func() {
		defer wg.Done()
		for decl := range jobs {
			res := g.generateOne(ctx, src, outDir, decl)
			mu.Lock()
			results[indexByName[decl.Name]] = res
			mu.Unlock()
		}
	}

	workerCount := g.concurrency
	if workerCount > len(declarations) {
		workerCount = len(declarations)
	}
	if workerCount < 1 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go worker()
	}

	for _, d := range declarations {
		select {
		case jobs <- d:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// generateOne runs decl's effect chain once and writes the result. A
// failure whose reason isn't NoEngine is retried once before being handed
// to the caller's per-variant criticality policy, per spec §7's
// "EffectFailed(other): Retry once; then per-variant criticality policy" —
// a NoEngine failure is never retried since no engine materializes between
// attempts.
func (g *Generator) generateOne(ctx context.Context, src image.Image, outDir string, decl Declaration) Result {
	res := g.runChain(ctx, src, outDir, decl)
	if res.Err != nil && res.Err.Kind == wallcore.ErrEffectFailed && res.Err.EffectReason != wallcore.EffectReasonNoEngine {
		res = g.runChain(ctx, src, outDir, decl)
	}
	res.Critical = decl.Critical
	if res.Err != nil {
		// A non-critical variant's failure is recoverable from the set's
		// point of view (the set is reported partial, not failed); a
		// critical one isn't, per spec §4.5.
		res.Err.Recoverable = !decl.Critical
	}
	return res
}

func (g *Generator) runChain(ctx context.Context, src image.Image, outDir string, decl Declaration) Result {
	img := src
	for _, params := range decl.Effects {
		engine, err := g.registry.Resolve(ctx, params.Kind, decl.Engine, g.engineOrder)
		if err != nil {
			return Result{Name: decl.Name, Err: asStructured(err)}
		}
		img, err = engine.Apply(ctx, img, params)
		if err != nil {
			return Result{Name: decl.Name, Err: asStructured(err)}
		}
	}

	outPath := filepath.Join(outDir, decl.Name+".png")
	if err := writePNGAtomic(outPath, img); err != nil {
		return Result{Name: decl.Name, Err: wallcore.NewError(wallcore.ErrEffectFailed, "variants",
			fmt.Sprintf("cannot write variant %q: %v", decl.Name, err), false, err)}
	}
	return Result{Name: decl.Name, OutputPath: outPath}
}

func asStructured(err error) *wallcore.StructuredError {
	if se, ok := err.(*wallcore.StructuredError); ok {
		return se
	}
	return wallcore.NewError(wallcore.ErrEffectFailed, "variants", err.Error(), true, err)
}

// writePNGAtomic encodes img to a sibling temp file and renames it into
// place, matching the cache layer's build-then-rename publish contract so a
// reader never observes a half-written variant (spec §4.5/§4.6).
func writePNGAtomic(path string, img image.Image) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wallhue-variant-*.png")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
