// applyCmd wires together every wallhue package into the single
// extract-cache-apply operation spec §4.7 describes, grounded on tinct's
// internal/cli command bodies (load config, build the plugin/output
// surfaces, run, report).
package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/wallhue/internal/applier"
	"github.com/jmylchreest/wallhue/internal/cache"
	"github.com/jmylchreest/wallhue/internal/config"
	"github.com/jmylchreest/wallhue/internal/effects"
	"github.com/jmylchreest/wallhue/internal/orchestrator"
	"github.com/jmylchreest/wallhue/internal/paletteextract"
	"github.com/jmylchreest/wallhue/internal/render"
	"github.com/jmylchreest/wallhue/internal/reporter"
	"github.com/jmylchreest/wallhue/internal/variants"
	"github.com/jmylchreest/wallhue/internal/wallcore"
)

var (
	flagMonitor      string
	flagForceRebuild bool
	flagNoCache      bool
	flagSeed         int64
	flagStyle        string
	flagAlgorithm    string
	flagPaletteDir   string
	flagVariantsDir  string
)

var applyCmd = &cobra.Command{
	Use:   "apply <image>",
	Short: "Extract a palette from an image, generate variants, and set it as the wallpaper",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().StringVar(&flagMonitor, "monitor", "", "monitor selector (empty = all monitors)")
	applyCmd.Flags().BoolVar(&flagForceRebuild, "force", false, "bypass the cache and regenerate")
	applyCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "do not read from or write to the cache")
	applyCmd.Flags().Int64Var(&flagSeed, "seed", 1, "deterministic seed for randomized extraction algorithms")
	applyCmd.Flags().StringVar(&flagStyle, "style", "auto", "palette style: auto, dark, or light")
	applyCmd.Flags().StringVar(&flagAlgorithm, "algorithm", "kmeans", "extraction algorithm: kmeans, median_cut, or octree")
	applyCmd.Flags().StringVar(&flagPaletteDir, "palette-dir", "", "also write rendered palette files here (default: cache entry only)")
	applyCmd.Flags().StringVar(&flagVariantsDir, "variants-dir", "", "also write effect variants here (default: cache entry only)")
}

func runApply(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sharedLog = newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := cache.Open(cache.Config{
		Root:              cfg.Cache.Root,
		MaxBytes:          cfg.Cache.MaxBytes,
		MaxEntries:        cfg.Cache.MaxEntries,
		LowWatermarkBytes: cfg.Cache.LowWatermarkBytes,
		SchemaVersion:     cfg.Cache.SchemaVersion,
		LockTimeoutMS:     cfg.Cache.LockTimeoutMS,
	})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	paletteRegistry := paletteextract.NewRegistry()
	paletteRegistry.Register(paletteextract.NewInProcessBackend())
	paletteRegistry.Register(paletteextract.NewExternalWalBackend())
	paletteRegistry.Register(paletteextract.NewExternalWallustBackend())
	backendFallback := []string{"in_process", "external_wal", "external_wallust"}

	effectsRegistry := effects.NewRegistry()
	inProcEngine := effects.NewInProcessEngine()
	effectsRegistry.Register(inProcEngine,
		effects.KindBlur, effects.KindBrightness, effects.KindSaturation,
		effects.KindGrayscale, effects.KindVignette, effects.KindColorOverlay, effects.KindNegate)
	externalEngine := effects.NewExternalImagerEngine(cfg.Cache.Root)
	effectsRegistry.Register(externalEngine,
		effects.KindBlur, effects.KindBrightness, effects.KindSaturation,
		effects.KindGrayscale, effects.KindNegate)
	engineFallback := []string{"in_process", "external_imager"}

	templateEngine := render.NewTextTemplateEngine(cfg.Palette.TemplatesDir)
	app := applier.NewHyprpaperApplier()

	orch := orchestrator.New(sharedLog, c, paletteRegistry, effectsRegistry, app, templateEngine, backendFallback, engineFallback)

	decls, err := variantDeclarations(cfg.Variants)
	if err != nil {
		return err
	}

	opts := buildOptions(cfg, decls)

	result, err := orch.Orchestrate(ctx, imagePath, opts)
	if err != nil {
		return fmt.Errorf("orchestrate: %w", err)
	}

	reportResult(cmd, result)
	return nil
}

func variantDeclarations(vcs []config.VariantConfig) ([]variants.Declaration, error) {
	decls := make([]variants.Declaration, 0, len(vcs))
	for _, vc := range vcs {
		params := make([]effects.Params, 0, len(vc.Effects))
		for _, ec := range vc.Effects {
			p := effects.Params{
				Kind:         effects.Kind(ec.Kind),
				Radius:       ec.Radius,
				Factor:       ec.Factor,
				Strength:     ec.Strength,
				Falloff:      ec.Falloff,
				OverlayAlpha: ec.OverlayAlpha,
			}
			if ec.OverlayHex != "" {
				col, err := wallcore.ParseHex(ec.OverlayHex)
				if err != nil {
					return nil, fmt.Errorf("variant %s: %w", vc.Name, err)
				}
				p.OverlayColor = col
			}
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("variant %s: %w", vc.Name, err)
			}
			params = append(params, p)
		}
		decls = append(decls, variants.Declaration{Name: vc.Name, Engine: vc.Engine, Critical: vc.Critical, Effects: params})
	}
	return decls, nil
}

func buildOptions(cfg *config.Config, decls []variants.Declaration) orchestrator.Options {
	return orchestrator.Options{
		OutputPaletteDir:  flagPaletteDir,
		OutputVariantsDir: flagVariantsDir,
		Monitor:           applier.MonitorSelector(flagMonitor),
		Reporter:          reporter.NewInProcessReporter(sharedLog),
		AllowCache:        cfg.Orchestrator.AllowCache && !flagNoCache,
		ForceRebuild:      flagForceRebuild,

		PaletteBackend: cfg.Palette.Backend,
		PaletteOptions: paletteextract.Options{
			ColorCount: 16,
			Style:      paletteextract.Style(flagStyle),
			Algorithm:  flagAlgorithm,
			Seed:       flagSeed,
			Extra:      cfg.Palette.BackendOptions,
		},
		Formats:       cfg.Palette.Formats,
		VariantDecls:  decls,
		SchemaVersion: cfg.Cache.SchemaVersion,

		StepTimeout:     time.Duration(cfg.Pipeline.StepTimeoutMS) * time.Millisecond,
		StepMaxAttempts: cfg.Pipeline.StepMaxAttempts,
	}
}

func reportResult(cmd *cobra.Command, result *orchestrator.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "palette background=%s foreground=%s backend=%s\n",
		result.Palette.Background.Hex(), result.Palette.Foreground.Hex(), result.Palette.Provenance.BackendID)
	for format, path := range result.PaletteFiles {
		fmt.Fprintf(out, "  wrote %s -> %s\n", format, path)
	}
	for _, v := range result.VariantResults {
		if v.Err != nil {
			fmt.Fprintf(out, "  variant %s failed: %s\n", v.Name, v.Err.Error())
			continue
		}
		fmt.Fprintf(out, "  variant %s -> %s\n", v.Name, v.OutputPath)
	}
	if result.Applied {
		fmt.Fprintf(out, "applied wallpaper (from cache: %v, %dms)\n", result.FromCache, result.DurationMS)
	} else {
		fmt.Fprintf(out, "wallpaper not applied (from cache: %v, %dms)\n", result.FromCache, result.DurationMS)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w.Error())
	}
}
