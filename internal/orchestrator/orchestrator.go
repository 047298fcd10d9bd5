// Package orchestrator implements spec §4.7's central algorithm: given a
// source image path, compute its fingerprint, consult the cache, and either
// reconstruct a result from a hit or run the full derivation pipeline
// (palette extraction and variant generation in parallel, then apply) on a
// miss, publishing the result back to the cache. Grounded on tinct's
// internal/cli root-command composition style (one struct wiring logger,
// config, and the domain packages together, no framework beyond what's
// needed) applied to an orchestration function rather than a CLI command.
package orchestrator

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/wallhue/internal/applier"
	"github.com/jmylchreest/wallhue/internal/cache"
	"github.com/jmylchreest/wallhue/internal/effects"
	"github.com/jmylchreest/wallhue/internal/imageio"
	"github.com/jmylchreest/wallhue/internal/paletteextract"
	"github.com/jmylchreest/wallhue/internal/pipeline"
	"github.com/jmylchreest/wallhue/internal/render"
	"github.com/jmylchreest/wallhue/internal/reporter"
	"github.com/jmylchreest/wallhue/internal/variants"
	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Options configures a single Orchestrate call, matching spec §4.7's
// options shape.
type Options struct {
	OutputPaletteDir  string
	OutputVariantsDir string
	Monitor           applier.MonitorSelector
	Reporter          reporter.Reporter
	AllowCache        bool
	ForceRebuild      bool

	PaletteBackend string
	PaletteOptions paletteextract.Options
	Formats        []string
	VariantDecls   []variants.Declaration
	SchemaVersion  int

	StepTimeout     time.Duration
	StepMaxAttempts int
}

// Result mirrors spec §4.7's OrchestrationResult.
type Result struct {
	Palette        *wallcore.Palette
	PaletteFiles   map[string]string // format -> path
	VariantResults []variants.Result
	Applied        bool
	MonitorApplied applier.MonitorSelector
	FromCache      bool
	DurationMS     int64
	Warnings       []*wallcore.StructuredError
}

// Orchestrator composes the cache, pipeline, extraction, variant, render,
// and apply layers into one entry point.
type Orchestrator struct {
	log             hclog.Logger
	cache           *cache.Cache
	paletteRegistry *paletteextract.Registry
	effectsRegistry *effects.Registry
	applier         applier.Applier
	engine          render.TemplateEngine
	backendFallback []string
	engineFallback  []string
}

// New builds an Orchestrator from its already-constructed dependencies.
func New(log hclog.Logger, c *cache.Cache, paletteRegistry *paletteextract.Registry, effectsRegistry *effects.Registry, app applier.Applier, engine render.TemplateEngine, backendFallback, engineFallback []string) *Orchestrator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Orchestrator{
		log:             log,
		cache:           c,
		paletteRegistry: paletteRegistry,
		effectsRegistry: effectsRegistry,
		applier:         app,
		engine:          engine,
		backendFallback: backendFallback,
		engineFallback:  engineFallback,
	}
}

// Orchestrate runs spec §4.7's algorithm for a single source image.
func (o *Orchestrator) Orchestrate(ctx context.Context, imagePath string, opts Options) (*Result, error) {
	start := time.Now()
	rep := opts.Reporter
	if rep == nil {
		rep = reporter.NoopReporter{}
	}

	imagePath, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrInternal, "orchestrate", "cannot resolve absolute image path", false, err)
	}

	img, err := imageio.Load(imagePath)
	if err != nil {
		return nil, err
	}
	contentHash, err := imageio.ContentHash(imagePath)
	if err != nil {
		return nil, err
	}

	paletteConfigHash := wallcore.HashStrings(paletteextract.ConfigHash(opts.PaletteBackend, opts.PaletteOptions), strings.Join(opts.Formats, ","))
	variantConfigHash := variantConfigHash(opts.VariantDecls)
	key := wallcore.CacheKey{
		ImageContentHash:  contentHash,
		PaletteConfigHash: paletteConfigHash,
		VariantConfigHash: variantConfigHash,
		SchemaVersion:     opts.SchemaVersion,
	}

	if opts.AllowCache && !opts.ForceRebuild && !o.cache.Disabled() {
		if entry, hit, err := o.cache.Lookup(ctx, key); err == nil && hit {
			now := time.Now().UTC().Format(time.RFC3339)
			_ = o.cache.Touch(entry.Fingerprint, now)
			return o.fromCacheHit(ctx, entry, imagePath, opts, start, rep)
		}
	}

	return o.runPipelineAndCache(ctx, imagePath, img, key, opts, start, rep)
}

func (o *Orchestrator) fromCacheHit(ctx context.Context, entry *cache.Entry, imagePath string, opts Options, start time.Time, rep reporter.Reporter) (*Result, error) {
	paletteFiles := make(map[string]string, len(entry.PaletteFormatFiles))
	for format, name := range entry.PaletteFormatFiles {
		paletteFiles[format] = filepath.Join(entry.PaletteDir, name)
	}
	variantResults := make([]variants.Result, 0, len(entry.VariantFiles))
	for _, name := range entry.VariantFiles {
		variantResults = append(variantResults, variants.Result{
			Name:       strings.TrimSuffix(name, filepath.Ext(name)),
			OutputPath: filepath.Join(entry.VariantDir, name),
		})
	}

	if opts.OutputPaletteDir != "" && opts.OutputPaletteDir != entry.PaletteDir {
		if err := copyDirFiles(entry.PaletteDir, opts.OutputPaletteDir); err != nil {
			o.log.Warn("cannot mirror cached palette output to user directory", "err", err)
		} else {
			paletteFiles = rebaseFiles(paletteFiles, opts.OutputPaletteDir)
		}
	}
	if opts.OutputVariantsDir != "" && opts.OutputVariantsDir != entry.VariantDir {
		if err := copyDirFiles(entry.VariantDir, opts.OutputVariantsDir); err != nil {
			o.log.Warn("cannot mirror cached variant output to user directory", "err", err)
		} else {
			for i, r := range variantResults {
				variantResults[i].OutputPath = filepath.Join(opts.OutputVariantsDir, filepath.Base(r.OutputPath))
			}
		}
	}

	result := &Result{
		Palette:        entry.Palette,
		PaletteFiles:   paletteFiles,
		VariantResults: variantResults,
		FromCache:      true,
	}

	applied, monitor, warn := o.applyStep(ctx, imagePath, opts, rep)
	result.Applied = applied
	result.MonitorApplied = monitor
	if warn != nil {
		result.Warnings = append(result.Warnings, warn)
	}
	result.DurationMS = time.Since(start).Milliseconds()
	rep.OnProgress("orchestrate", 1.0, reporter.StatusComplete)
	return result, nil
}

func (o *Orchestrator) runPipelineAndCache(ctx context.Context, imagePath string, img image.Image, key wallcore.CacheKey, opts Options, start time.Time, rep reporter.Reporter) (*Result, error) {
	scratch, err := os.MkdirTemp("", "wallhue-"+uuid.NewString())
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrInternal, "orchestrate", "cannot create scratch directory", false, err)
	}
	defer os.RemoveAll(scratch)

	var handle *cache.InsertHandle
	if opts.AllowCache && !o.cache.Disabled() {
		handle, err = o.cache.BeginInsert(ctx, key.Fingerprint())
		if err != nil {
			o.log.Warn("cache busy, proceeding without caching", "err", err)
			handle = nil
		}
	}

	// The cache entry is the authoritative write target whenever one exists
	// (spec §9's open question: cache entry authoritative, user-visible dir
	// is a copy produced at return); only fall back to scratch/user dirs
	// when caching isn't in play for this run.
	paletteWriteDir := opts.OutputPaletteDir
	variantWriteDir := opts.OutputVariantsDir
	if handle != nil {
		paletteWriteDir = handle.PaletteDir
		variantWriteDir = handle.VariantDir
	} else {
		if paletteWriteDir == "" {
			paletteWriteDir = filepath.Join(scratch, "palette-out")
		}
		if variantWriteDir == "" {
			variantWriteDir = filepath.Join(scratch, "variants-out")
		}
	}

	pc := pipeline.NewContext(rep, scratch)
	var palette *wallcore.Palette
	var variantResults []variants.Result

	paletteStep := pipeline.Step{
		Name:        "palette",
		Critical:    true,
		Weight:      1,
		Timeout:     opts.StepTimeout,
		MaxAttempts: opts.StepMaxAttempts,
		Run: func(ctx context.Context, pc *pipeline.Context) pipeline.StepOutcome {
			backend, err := o.paletteRegistry.Resolve(ctx, opts.PaletteBackend, o.backendFallback)
			if err != nil {
				return pipeline.Fail(asStructured(err))
			}
			p, err := backend.Extract(ctx, imagePath, img, opts.PaletteOptions)
			if err != nil {
				return pipeline.Fail(asStructured(err))
			}
			if err := wallcore.ValidatePalette(p); err != nil {
				return pipeline.Fail(wallcore.NewError(wallcore.ErrExtractionFailed, "palette", err.Error(), false, err))
			}
			palette = p
			return pipeline.Ok(p)
		},
	}

	variantsStep := pipeline.Step{
		Name:     "variants",
		Critical: false,
		Weight:   1,
		Timeout:  opts.StepTimeout,
		// MaxAttempts is left at the pipeline default (1): variants.Generate
		// already retries each failed variant once internally (spec §7's
		// EffectFailed(other) policy), so a step-level retry would redo the
		// whole batch, including variants that already succeeded.
		Run: func(ctx context.Context, pc *pipeline.Context) pipeline.StepOutcome {
			if len(opts.VariantDecls) == 0 {
				return pipeline.Skip("no variants declared")
			}
			if err := os.MkdirAll(variantWriteDir, 0o755); err != nil { // #nosec G301 - operator-configured or cache-owned output directory
				return pipeline.Fail(wallcore.NewError(wallcore.ErrInternal, "variants", "cannot create variant output dir", false, err))
			}
			gen := variants.NewGenerator(o.effectsRegistry, 0, o.engineFallback)
			results := gen.Generate(ctx, img, variantWriteDir, opts.VariantDecls)
			variantResults = results
			for _, r := range results {
				if r.Err != nil && r.Critical {
					return pipeline.Fail(r.Err)
				}
			}
			return pipeline.Ok(results)
		},
	}

	executor := pipeline.NewExecutor(o.log)
	outcome := executor.Run(ctx, pc, []pipeline.Entry{
		pipeline.Parallel(paletteStep, variantsStep),
	})

	var warnings []*wallcore.StructuredError
	for _, e := range pc.Errors() {
		warnings = append(warnings, e)
	}

	if outcome == pipeline.RunCancelled {
		if handle != nil {
			handle.Abort()
		}
		return nil, wallcore.NewError(wallcore.ErrCancelled, "orchestrate", "orchestration cancelled", false, nil)
	}
	if palette == nil {
		if handle != nil {
			handle.Abort()
		}
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "orchestrate", "palette extraction failed critically", false, nil)
	}

	result := &Result{Palette: palette, VariantResults: variantResults, Warnings: warnings}

	paletteFiles, variantFileNames, err := o.writeOutputs(palette, paletteWriteDir, opts)
	if err != nil {
		if handle != nil {
			handle.Abort()
		}
		return nil, err
	}
	for _, r := range variantResults {
		if r.OutputPath != "" {
			variantFileNames = append(variantFileNames, filepath.Base(r.OutputPath))
		}
	}

	if handle != nil {
		paletteFormats := make(map[string]string, len(paletteFiles))
		for format, p := range paletteFiles {
			paletteFormats[format] = filepath.Base(p)
		}
		entry, err := o.cache.Commit(handle, key, palette, paletteFormats, variantFileNames)
		if err != nil {
			o.log.Warn("cache commit failed, continuing without a cached entry", "err", err)
		} else {
			o.log.Debug("committed cache entry", "fingerprint", entry.Fingerprint)
		}

		// The cache entry now holds the authoritative copies; mirror them
		// into any user-requested output directories so callers who asked
		// for a specific path see the same bytes without depending on the
		// cache's internal layout.
		if opts.OutputPaletteDir != "" && opts.OutputPaletteDir != paletteWriteDir {
			if err := copyDirFiles(paletteWriteDir, opts.OutputPaletteDir); err != nil {
				o.log.Warn("cannot mirror palette output to user directory", "err", err)
			} else {
				paletteFiles = rebaseFiles(paletteFiles, opts.OutputPaletteDir)
			}
		}
		if opts.OutputVariantsDir != "" && opts.OutputVariantsDir != variantWriteDir {
			if err := copyDirFiles(variantWriteDir, opts.OutputVariantsDir); err != nil {
				o.log.Warn("cannot mirror variant output to user directory", "err", err)
			} else {
				for i, r := range variantResults {
					if r.OutputPath != "" {
						variantResults[i].OutputPath = filepath.Join(opts.OutputVariantsDir, filepath.Base(r.OutputPath))
					}
				}
			}
		}
	}
	result.PaletteFiles = paletteFiles
	result.VariantResults = variantResults

	applied, monitor, warn := o.applyStep(ctx, imagePath, opts, rep)
	result.Applied = applied
	result.MonitorApplied = monitor
	if warn != nil {
		result.Warnings = append(result.Warnings, warn)
	}
	result.DurationMS = time.Since(start).Milliseconds()
	rep.OnProgress("orchestrate", 1.0, reporter.StatusComplete)
	return result, nil
}

func (o *Orchestrator) applyStep(ctx context.Context, imagePath string, opts Options, rep reporter.Reporter) (bool, applier.MonitorSelector, *wallcore.StructuredError) {
	if o.applier == nil {
		return false, "", nil
	}
	if err := o.applier.Set(ctx, imagePath, opts.Monitor); err != nil {
		se := asStructured(err)
		rep.OnError("apply", se)
		return false, "", se
	}
	return true, opts.Monitor, nil
}

func (o *Orchestrator) writeOutputs(palette *wallcore.Palette, paletteDir string, opts Options) (map[string]string, []string, error) {
	formats := make([]render.Format, len(opts.Formats))
	for i, f := range opts.Formats {
		formats[i] = render.Format(f)
	}
	outputSet, err := render.Render(o.engine, palette, paletteDir, formats)
	if err != nil {
		return nil, nil, err
	}
	return map[string]string(outputSet), nil, nil
}

// copyDirFiles copies every regular file directly under src into dst
// (non-recursive, matching the flat palette/variant directory layout),
// used to mirror the cache entry's authoritative files into a
// user-requested output directory without making that directory the
// write target of record (spec §9's open question on symlink-vs-copy,
// resolved here as a copy).
func copyDirFiles(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil { // #nosec G301 - operator-configured output directory
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name())) // #nosec G304 - path built from cache-internal directory listing
		if err != nil {
			return err
		}
		if err := render.WriteAtomic(filepath.Join(dst, e.Name()), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// rebaseFiles rewrites each path in files to newDir, keeping the basename,
// used after copyDirFiles to report the user-visible paths rather than the
// cache's internal staging paths.
func rebaseFiles(files map[string]string, newDir string) map[string]string {
	out := make(map[string]string, len(files))
	for k, p := range files {
		out[k] = filepath.Join(newDir, filepath.Base(p))
	}
	return out
}

func variantConfigHash(decls []variants.Declaration) string {
	parts := make([]string, 0, len(decls)*2)
	for _, d := range decls {
		parts = append(parts, d.Name, d.Engine)
		for _, e := range d.Effects {
			parts = append(parts, string(e.Kind), fmt.Sprintf("%g|%g|%g|%g|%s|%g",
				e.Radius, e.Factor, e.Strength, e.Falloff, e.OverlayColor.Hex(), e.OverlayAlpha))
		}
	}
	return wallcore.HashStrings(parts...)
}

func asStructured(err error) *wallcore.StructuredError {
	if se, ok := err.(*wallcore.StructuredError); ok {
		return se
	}
	return wallcore.NewError(wallcore.ErrInternal, "orchestrate", err.Error(), true, err)
}
