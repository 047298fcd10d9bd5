package effects

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// ExternalImagerEngine applies effects by shelling out to ImageMagick's
// "convert", grounded on tinct's internal/plugin/output/hyprpaper/hyprpaper.go
// subprocess-invocation idiom (exec.CommandContext + CombinedOutput error
// wrapping), applied here to an image-manipulation binary instead of a
// wallpaper-setting one. Used as the higher-fidelity alternative to the
// in-process engine when "convert" is present on PATH (spec §4.4).
type ExternalImagerEngine struct {
	binary    string // defaults to "convert"
	scratch   string
}

// NewExternalImagerEngine builds an ExternalImagerEngine writing scratch
// files under scratchDir (the CLI passes the cache root), each scratch file
// named with google/uuid the same way tinct names scratch artifacts for its
// plugin subprocess I/O.
func NewExternalImagerEngine(scratchDir string) *ExternalImagerEngine {
	return &ExternalImagerEngine{binary: "convert", scratch: scratchDir}
}

func (e *ExternalImagerEngine) ID() string { return "external_imager" }

func (e *ExternalImagerEngine) Supports(kind Kind) bool {
	switch kind {
	case KindBlur, KindBrightness, KindSaturation, KindGrayscale, KindNegate:
		return true
	default:
		return false
	}
}

func (e *ExternalImagerEngine) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

func (e *ExternalImagerEngine) Apply(ctx context.Context, img image.Image, params Params) (image.Image, error) {
	if err := params.Validate(); err != nil {
		return nil, wallcore.NewError(wallcore.ErrEffectFailed, "effects", err.Error(), false, err)
	}

	args, err := e.commandArgs(params)
	if err != nil {
		return nil, err
	}

	inPath := filepath.Join(e.scratch, uuid.NewString()+"-in.png")
	outPath := filepath.Join(e.scratch, uuid.NewString()+"-out.png")
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := writePNG(inPath, img); err != nil {
		return nil, wallcore.NewError(wallcore.ErrEffectFailed, "effects", "cannot write scratch input", false, err)
	}

	cmdArgs := append([]string{inPath}, append(args, outPath)...)
	cmd := exec.CommandContext(ctx, e.binary, cmdArgs...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, wallcore.NewError(wallcore.ErrEffectFailed, "effects",
			fmt.Sprintf("%s failed: %v (output: %s)", e.binary, err, string(output)), true, err)
	}

	out, err := os.Open(outPath) // #nosec G304 - scratch file path we just wrote
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrEffectFailed, "effects", "cannot reopen scratch output", false, err)
	}
	defer out.Close()

	decoded, _, err := image.Decode(out)
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrEffectFailed, "effects", "cannot decode scratch output", false, err)
	}
	return decoded, nil
}

func (e *ExternalImagerEngine) commandArgs(params Params) ([]string, error) {
	switch params.Kind {
	case KindBlur:
		return []string{"-blur", fmt.Sprintf("0x%g", params.Radius)}, nil
	case KindBrightness:
		return []string{"-brightness-contrast", fmt.Sprintf("%gx0", (params.Factor-1.0)*100)}, nil
	case KindSaturation:
		return []string{"-modulate", fmt.Sprintf("100,%g,100", params.Factor*100)}, nil
	case KindGrayscale:
		return []string{"-colorspace", "Gray"}, nil
	case KindNegate:
		return []string{"-negate"}, nil
	default:
		return nil, wallcore.NewError(wallcore.ErrEffectFailed, "effects", "external_imager does not support this effect kind", false, nil)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path) // #nosec G304 - scratch path under pipeline-owned directory
	if err != nil {
		return err
	}
	defer f.Close()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	_, err = f.Write(buf.Bytes())
	return err
}
