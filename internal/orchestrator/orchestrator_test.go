package orchestrator

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/wallhue/internal/cache"
	"github.com/jmylchreest/wallhue/internal/effects"
	"github.com/jmylchreest/wallhue/internal/paletteextract"
	"github.com/jmylchreest/wallhue/internal/render"
)

func writeTestImage(t *testing.T, dir, name string, fill color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, fill)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return path
}

func newTestOrchestrator(t *testing.T, cfg cache.Config) (*Orchestrator, *cache.Cache) {
	t.Helper()
	c, err := cache.Open(cfg)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	paletteReg := paletteextract.NewRegistry()
	paletteReg.Register(paletteextract.NewInProcessBackend())
	effectsReg := effects.NewRegistry()
	effectsReg.Register(effects.NewInProcessEngine(),
		effects.KindBlur, effects.KindBrightness, effects.KindSaturation,
		effects.KindGrayscale, effects.KindVignette, effects.KindColorOverlay, effects.KindNegate)

	o := New(hclog.NewNullLogger(), c, paletteReg, effectsReg, nil,
		render.NewTextTemplateEngine(""), []string{"in_process"}, []string{"in_process"})
	return o, c
}

func baseOptions() Options {
	return Options{
		AllowCache:     true,
		PaletteBackend: "in_process",
		PaletteOptions: paletteextract.Options{ColorCount: 16, Style: paletteextract.StyleAuto, Algorithm: "kmeans"},
		Formats:        []string{"json"},
		SchemaVersion:  1,
	}
}

// Scenario 1: a cold miss runs the full pipeline and persists a cache entry.
func TestOrchestrateColdMissPersistsEntry(t *testing.T) {
	root := t.TempDir()
	o, c := newTestOrchestrator(t, cache.Config{Root: filepath.Join(root, "cache"), MaxBytes: 1 << 30, MaxEntries: 100, LowWatermarkBytes: 1 << 30})
	_ = c
	imgDir := t.TempDir()
	imgPath := writeTestImage(t, imgDir, "a.png", color.RGBA{R: 10, G: 20, B: 30, A: 255})

	res, err := o.Orchestrate(context.Background(), imgPath, baseOptions())
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if res.FromCache {
		t.Fatalf("FromCache = true on a cold miss, want false")
	}
	if res.Palette == nil {
		t.Fatalf("Palette = nil, want an extracted palette")
	}

	entries, err := os.ReadDir(filepath.Join(root, "cache", "entries"))
	if err != nil {
		t.Fatalf("read entries dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries dir has %d entries, want 1 after a cold miss", len(entries))
	}
}

// Scenario 2: a second call with identical inputs is served from the cache.
func TestOrchestrateWarmHit(t *testing.T) {
	root := t.TempDir()
	o, _ := newTestOrchestrator(t, cache.Config{Root: filepath.Join(root, "cache"), MaxBytes: 1 << 30, MaxEntries: 100, LowWatermarkBytes: 1 << 30})
	imgDir := t.TempDir()
	imgPath := writeTestImage(t, imgDir, "a.png", color.RGBA{R: 10, G: 20, B: 30, A: 255})

	opts := baseOptions()
	first, err := o.Orchestrate(context.Background(), imgPath, opts)
	if err != nil {
		t.Fatalf("Orchestrate (cold): %v", err)
	}

	second, err := o.Orchestrate(context.Background(), imgPath, opts)
	if err != nil {
		t.Fatalf("Orchestrate (warm): %v", err)
	}
	if !second.FromCache {
		t.Fatalf("FromCache = false on the warm call, want true")
	}
	if second.Palette.Background != first.Palette.Background {
		t.Errorf("warm hit returned a different palette than the cold miss produced")
	}
}

// Scenario 3: AllowCache=false bypasses the cache on both read and write.
func TestOrchestrateAllowCacheFalseNeverPersists(t *testing.T) {
	root := t.TempDir()
	o, _ := newTestOrchestrator(t, cache.Config{Root: filepath.Join(root, "cache"), MaxBytes: 1 << 30, MaxEntries: 100, LowWatermarkBytes: 1 << 30})
	imgDir := t.TempDir()
	imgPath := writeTestImage(t, imgDir, "a.png", color.RGBA{R: 10, G: 20, B: 30, A: 255})

	opts := baseOptions()
	opts.AllowCache = false

	for i := 0; i < 2; i++ {
		res, err := o.Orchestrate(context.Background(), imgPath, opts)
		if err != nil {
			t.Fatalf("Orchestrate: %v", err)
		}
		if res.FromCache {
			t.Fatalf("FromCache = true with AllowCache=false, want false")
		}
	}

	entriesDir := filepath.Join(root, "cache", "entries")
	entries, err := os.ReadDir(entriesDir)
	if err != nil {
		t.Fatalf("read entries dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries dir has %d entries, want 0 with AllowCache=false", len(entries))
	}
}

// Scenario 4: ForceRebuild skips a cache lookup even when a valid entry
// exists, but still commits a (refreshed) entry afterward.
func TestOrchestrateForceRebuildBypassesLookup(t *testing.T) {
	root := t.TempDir()
	o, _ := newTestOrchestrator(t, cache.Config{Root: filepath.Join(root, "cache"), MaxBytes: 1 << 30, MaxEntries: 100, LowWatermarkBytes: 1 << 30})
	imgDir := t.TempDir()
	imgPath := writeTestImage(t, imgDir, "a.png", color.RGBA{R: 10, G: 20, B: 30, A: 255})

	opts := baseOptions()
	if _, err := o.Orchestrate(context.Background(), imgPath, opts); err != nil {
		t.Fatalf("Orchestrate (cold): %v", err)
	}

	opts.ForceRebuild = true
	res, err := o.Orchestrate(context.Background(), imgPath, opts)
	if err != nil {
		t.Fatalf("Orchestrate (force rebuild): %v", err)
	}
	if res.FromCache {
		t.Fatalf("FromCache = true with ForceRebuild=true, want false")
	}
}

// Scenario 5 (the reviewed boundary): cache.max_bytes=0 must behave exactly
// like caching being fully disabled — the orchestrator still runs end to
// end, FromCache is always false, and no entry is ever persisted to disk.
func TestOrchestrateMaxBytesZeroDisablesCacheEntirely(t *testing.T) {
	root := t.TempDir()
	o, c := newTestOrchestrator(t, cache.Config{Root: filepath.Join(root, "cache"), MaxBytes: 0, MaxEntries: 100})
	if !c.Disabled() {
		t.Fatalf("Cache.Disabled() = false for MaxBytes=0, want true")
	}
	imgDir := t.TempDir()
	imgPath := writeTestImage(t, imgDir, "a.png", color.RGBA{R: 10, G: 20, B: 30, A: 255})

	opts := baseOptions()
	for i := 0; i < 2; i++ {
		res, err := o.Orchestrate(context.Background(), imgPath, opts)
		if err != nil {
			t.Fatalf("Orchestrate: %v", err)
		}
		if res.Palette == nil {
			t.Fatalf("Palette = nil with max_bytes=0, orchestration must still run end to end")
		}
		if res.FromCache {
			t.Fatalf("FromCache = true on call %d with max_bytes=0, want always false", i)
		}
	}

	entriesDir := filepath.Join(root, "cache", "entries")
	entries, err := os.ReadDir(entriesDir)
	if err != nil {
		t.Fatalf("read entries dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries dir has %d entries, want 0 with max_bytes=0", len(entries))
	}
}

// Scenario 6: a low MaxEntries budget evicts the oldest entry once a
// distinct fingerprint is committed, so only the most recent image's entry
// is left on disk.
func TestOrchestrateEvictionUnderEntryBudget(t *testing.T) {
	root := t.TempDir()
	o, _ := newTestOrchestrator(t, cache.Config{Root: filepath.Join(root, "cache"), MaxBytes: 1 << 30, MaxEntries: 1, LowWatermarkBytes: 1 << 30})
	imgDir := t.TempDir()
	imgA := writeTestImage(t, imgDir, "a.png", color.RGBA{R: 10, G: 20, B: 30, A: 255})
	imgB := writeTestImage(t, imgDir, "b.png", color.RGBA{R: 200, G: 180, B: 5, A: 255})

	opts := baseOptions()
	if _, err := o.Orchestrate(context.Background(), imgA, opts); err != nil {
		t.Fatalf("Orchestrate (a): %v", err)
	}
	if _, err := o.Orchestrate(context.Background(), imgB, opts); err != nil {
		t.Fatalf("Orchestrate (b): %v", err)
	}

	entriesDir := filepath.Join(root, "cache", "entries")
	entries, err := os.ReadDir(entriesDir)
	if err != nil {
		t.Fatalf("read entries dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries dir has %d entries, want 1 after evicting past MaxEntries=1", len(entries))
	}

	// a's entry should now be gone, so re-requesting it is a miss again.
	res, err := o.Orchestrate(context.Background(), imgA, opts)
	if err != nil {
		t.Fatalf("Orchestrate (a again): %v", err)
	}
	if res.FromCache {
		t.Fatalf("FromCache = true for an evicted entry, want false")
	}
}
