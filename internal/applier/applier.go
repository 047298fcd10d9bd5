// Package applier implements the Applier external interface from spec
// §4.6/§4.7: setting the desktop wallpaper once the palette/variants are
// ready. HyprpaperApplier is adapted directly from tinct's
// internal/plugin/output/hyprpaper/hyprpaper.go PostExecute/setWallpaper/
// getActiveWallpaperAssignments, generalized from a post-template-render
// plugin hook into a standalone Applier the orchestrator calls explicitly.
package applier

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// MonitorSelector names which monitor(s) a wallpaper should apply to; the
// empty string means "all monitors" (hyprpaper's wildcard assignment).
type MonitorSelector string

// Applier sets the desktop wallpaper for the given image, per spec §4.6's
// Applier.set(image_path, monitor_selector) -> Ok | Failed(ApplyFailed)
// external interface.
type Applier interface {
	Set(ctx context.Context, imagePath string, monitor MonitorSelector) error
}

// HyprpaperApplier drives hyprpaper via hyprctl, grounded on tinct's own
// Hyprpaper output plugin, which implements the exact same subprocess
// sequence (unload all -> preload -> wallpaper) for the same tool.
type HyprpaperApplier struct {
	binary string // defaults to "hyprctl"
}

// NewHyprpaperApplier builds a HyprpaperApplier.
func NewHyprpaperApplier() *HyprpaperApplier {
	return &HyprpaperApplier{binary: "hyprctl"}
}

func (a *HyprpaperApplier) Set(ctx context.Context, imagePath string, monitor MonitorSelector) error {
	absPath, err := filepath.Abs(imagePath)
	if err != nil {
		return wallcore.NewError(wallcore.ErrApplyFailed, "apply", fmt.Sprintf("cannot resolve absolute path for %s", imagePath), true, err)
	}

	if err := exec.CommandContext(ctx, a.binary, "hyprpaper", "listloaded").Run(); err != nil {
		return wallcore.NewError(wallcore.ErrApplyFailed, "apply", "hyprpaper is not running", true, err)
	}

	// A named monitor gets the wallpaper alone; the empty selector targets
	// every monitor hyprpaper currently reports, or the wildcard if none.
	assignments := []string{string(monitor)}
	if monitor == "" {
		if active, err := a.activeAssignments(ctx); err == nil && len(active) > 0 {
			assignments = active
		}
	}

	// Ignore the unload error: wallpapers might not be loaded yet.
	_ = exec.CommandContext(ctx, a.binary, "hyprpaper", "unload", "all").Run()

	preload := exec.CommandContext(ctx, a.binary, "hyprpaper", "preload", absPath)
	if output, err := preload.CombinedOutput(); err != nil {
		return wallcore.NewError(wallcore.ErrApplyFailed, "apply",
			fmt.Sprintf("preload failed: %v (output: %s)", err, string(output)), true, err)
	}

	successCount := 0
	for _, mon := range assignments {
		setCmd := exec.CommandContext(ctx, a.binary, "hyprpaper", "wallpaper", mon+","+absPath)
		if err := setCmd.Run(); err != nil {
			continue
		}
		successCount++
	}
	if successCount == 0 {
		return wallcore.NewError(wallcore.ErrApplyFailed, "apply", "failed to set wallpaper on any monitor", true, nil)
	}
	return nil
}

// activeAssignments queries hyprpaper's currently active monitor->wallpaper
// mapping, grounded on tinct's getActiveWallpaperAssignments (same
// "MONITOR = /path" / " = /path" wildcard line format).
func (a *HyprpaperApplier) activeAssignments(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, a.binary, "hyprpaper", "listactive").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("query active wallpapers: %w", err)
	}

	var assignments []string
	for _, line := range strings.Split(string(output), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, " = ", 2)
		if len(parts) != 2 {
			continue
		}
		assignments = append(assignments, strings.TrimSpace(parts[0]))
	}
	return assignments, nil
}
