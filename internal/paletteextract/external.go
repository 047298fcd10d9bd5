package paletteextract

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// ExternalWalBackend shells out to a pywal-compatible binary and reads back
// its generated colors.json, grounded on tinct's
// internal/plugin/output/hyprpaper/hyprpaper.go subprocess-invocation idiom
// (exec.CommandContext + CombinedOutput error wrapping) applied to an
// extraction binary instead of an output applier.
type ExternalWalBackend struct {
	binary  string // defaults to "wal"
	cacheDir string // defaults to $HOME/.cache/wal
}

// NewExternalWalBackend builds an ExternalWalBackend. binary and cacheDir
// may be overridden via Options.Extra["wal_binary"]/["wal_cache_dir"].
func NewExternalWalBackend() *ExternalWalBackend {
	home, _ := os.UserHomeDir()
	return &ExternalWalBackend{binary: "wal", cacheDir: filepath.Join(home, ".cache", "wal")}
}

func (b *ExternalWalBackend) ID() string { return "external_wal" }

func (b *ExternalWalBackend) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(b.binary)
	return err == nil
}

type walColorsJSON struct {
	Special struct {
		Background string `json:"background"`
		Foreground string `json:"foreground"`
		Cursor     string `json:"cursor"`
	} `json:"special"`
	Colors map[string]string `json:"colors"`
}

func (b *ExternalWalBackend) Extract(ctx context.Context, imagePath string, img image.Image, opts Options) (*wallcore.Palette, error) {
	binary := b.binary
	cacheDir := b.cacheDir
	if v, ok := opts.Extra["wal_binary"]; ok && v != "" {
		binary = v
	}
	if v, ok := opts.Extra["wal_cache_dir"]; ok && v != "" {
		cacheDir = v
	}

	cmd := exec.CommandContext(ctx, binary, "-i", imagePath, "-n", "-q")
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, wallcore.NewError(wallcore.ErrBackendUnavailable, "palette-extract",
			fmt.Sprintf("%s failed: %v (output: %s)", binary, err, string(output)), true, err)
	}

	colorsPath := filepath.Join(cacheDir, "colors.json")
	raw, err := os.ReadFile(colorsPath) // #nosec G304 - path derived from known cache layout, not user input
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract",
			fmt.Sprintf("cannot read %s: %v", colorsPath, err), false, err)
	}

	var wc walColorsJSON
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract",
			fmt.Sprintf("cannot parse %s: %v", colorsPath, err), false, err)
	}

	colors := make([]wallcore.Color, 0, 16)
	for i := 0; i < 16; i++ {
		hex, ok := wc.Colors[fmt.Sprintf("color%d", i)]
		if !ok {
			continue
		}
		c, err := wallcore.ParseHex(hex)
		if err != nil {
			continue
		}
		colors = append(colors, c)
	}
	if len(colors) == 0 {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract", "wal produced no usable colors", false, nil)
	}

	bg, errBg := wallcore.ParseHex(wc.Special.Background)
	fg, errFg := wallcore.ParseHex(wc.Special.Foreground)
	cursor, errCur := wallcore.ParseHex(wc.Special.Cursor)
	if errBg != nil {
		bg = colors[0]
	}
	if errFg != nil {
		fg = colors[len(colors)-1]
	}
	if errCur != nil {
		cursor = fg
	}

	return &wallcore.Palette{
		Colors:     wallcore.ExpandToSixteen(colors),
		Background: bg,
		Foreground: fg,
		Cursor:     cursor,
		Provenance: wallcore.Provenance{
			SourceImageAbsolutePath: imagePath,
			BackendID:               b.ID(),
			GeneratedAtUTC:          time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// ExternalWallustBackend shells out to wallust and then scans its cache
// directory for the most-recently-modified output subdirectory, since
// wallust (unlike wal) does not print a stable, parseable path to its own
// output file (spec §9 Open Question: resolved in favor of
// mtime-based discovery, the same heuristic tinct's plugin loader uses
// when probing for freshly written plugin artifacts).
type ExternalWallustBackend struct {
	binary   string
	cacheDir string
}

// NewExternalWallustBackend builds an ExternalWallustBackend with wallust's
// documented default cache layout.
func NewExternalWallustBackend() *ExternalWallustBackend {
	home, _ := os.UserHomeDir()
	return &ExternalWallustBackend{binary: "wallust", cacheDir: filepath.Join(home, ".cache", "wallust")}
}

func (b *ExternalWallustBackend) ID() string { return "external_wallust" }

func (b *ExternalWallustBackend) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(b.binary)
	return err == nil
}

func (b *ExternalWallustBackend) Extract(ctx context.Context, imagePath string, img image.Image, opts Options) (*wallcore.Palette, error) {
	binary := b.binary
	cacheDir := b.cacheDir
	if v, ok := opts.Extra["wallust_binary"]; ok && v != "" {
		binary = v
	}
	if v, ok := opts.Extra["wallust_cache_dir"]; ok && v != "" {
		cacheDir = v
	}

	cmd := exec.CommandContext(ctx, binary, "run", imagePath, "-s")
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, wallcore.NewError(wallcore.ErrBackendUnavailable, "palette-extract",
			fmt.Sprintf("%s failed: %v (output: %s)", binary, err, string(output)), true, err)
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract",
			fmt.Sprintf("cannot read %s: %v", cacheDir, err), false, err)
	}

	var newest os.DirEntry
	var newestTime time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestTime) {
			newestTime = info.ModTime()
			newest = e
		}
	}
	if newest == nil {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract", "no wallust output directory found", false, nil)
	}

	dir := filepath.Join(cacheDir, newest.Name())
	colorFiles, err := os.ReadDir(dir)
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract",
			fmt.Sprintf("cannot read %s: %v", dir, err), false, err)
	}
	// Files are named <Backend>_<Colorspace>_<Threshold>_<Palette>; pick the
	// lexicographically last match deterministically when more than one
	// exists (spec §9).
	var names []string
	for _, f := range colorFiles {
		if !f.IsDir() && len(strings.Split(f.Name(), "_")) == 4 {
			names = append(names, f.Name())
		}
	}
	if len(names) == 0 {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract", "no wallust color files found", false, nil)
	}
	sort.Strings(names)
	chosen := filepath.Join(dir, names[len(names)-1])

	colors, err := parseWallustColorFile(chosen)
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract",
			fmt.Sprintf("cannot parse %s: %v", chosen, err), false, err)
	}
	if len(colors) == 0 {
		return nil, wallcore.NewError(wallcore.ErrExtractionFailed, "palette-extract", "wallust produced no usable colors", false, nil)
	}

	bg, fg := colors[0], colors[len(colors)-1]
	return &wallcore.Palette{
		Colors:     wallcore.ExpandToSixteen(colors),
		Background: bg,
		Foreground: fg,
		Cursor:     fg,
		Provenance: wallcore.Provenance{
			SourceImageAbsolutePath: imagePath,
			BackendID:               b.ID(),
			GeneratedAtUTC:          time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// parseWallustColorFile reads a plain-text file of one hex color (optionally
// "#RRGGBB = N" form) per line.
func parseWallustColorFile(path string) ([]wallcore.Color, error) {
	f, err := os.Open(path) // #nosec G304 - path derived from known cache layout, not user input
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var colors []wallcore.Color
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		field := strings.Fields(line)[0]
		if _, err := strconv.ParseInt(strings.TrimPrefix(field, "#"), 16, 64); err != nil {
			continue
		}
		c, err := wallcore.ParseHex(field)
		if err != nil {
			continue
		}
		colors = append(colors, c)
	}
	return colors, scanner.Err()
}
