// Package paletteextract converts an image into a wallhue.Palette via one of
// several interchangeable backends (spec §4.2). The interface and registry
// shape mirrors tinct/internal/colour.Extractor's "algorithm -> constructor"
// table (internal/colour/extractor.go), generalized so external-process
// backends can register alongside in-process ones.
package paletteextract

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Style selects a light or dark bias for background/foreground selection.
type Style string

const (
	StyleAuto  Style = "auto"
	StyleDark  Style = "dark"
	StyleLight Style = "light"
)

// Options configures a single extraction call. ColorCount is set to 16 by
// the CLI (spec §4.2) and plumbed through rather than hardcoded; the
// in-process backend uses it as its cluster count and falls back to
// wallcore.PaletteSize when it is zero or negative.
type Options struct {
	ColorCount int
	Style      Style
	Algorithm  string // in-process backend only: "kmeans" | "median_cut" | "octree"
	Seed       int64
	Extra      map[string]string // backend-specific tuning, e.g. external binary paths
}

// Backend is the interface every color-extraction strategy implements.
type Backend interface {
	ID() string
	IsAvailable(ctx context.Context) bool
	Extract(ctx context.Context, imagePath string, img image.Image, opts Options) (*wallcore.Palette, error)
}

// ConfigHash folds the backend id and its options into the
// palette_config_hash component of the cache fingerprint (spec §3). The
// orchestrator hashes this together with the selected format list; the
// render templates themselves (names or contents) are not part of the hash.
func ConfigHash(backendID string, opts Options) string {
	keys := make([]string, 0, len(opts.Extra))
	for k := range opts.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	extra := ""
	for _, k := range keys {
		extra += k + "=" + opts.Extra[k] + ";"
	}
	return wallcore.HashStrings(backendID, string(opts.Style), opts.Algorithm, extra, fmt.Sprintf("%d", opts.ColorCount))
}

// Registry looks up a Backend by id.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend, keyed by its ID().
func (r *Registry) Register(b Backend) {
	r.backends[b.ID()] = b
}

// Get retrieves a backend by id.
func (r *Registry) Get(id string) (Backend, bool) {
	b, ok := r.backends[id]
	return b, ok
}

// Resolve returns the configured backend if available; if it is not, it
// probes the backends named in order, in that order, and returns the
// first available one, per spec §9's "ordered probe of candidates, first
// success wins" design note for auto-detect-best-backend factories.
func (r *Registry) Resolve(ctx context.Context, preferred string, order []string) (Backend, error) {
	if b, ok := r.backends[preferred]; ok && b.IsAvailable(ctx) {
		return b, nil
	}
	for _, id := range order {
		if b, ok := r.backends[id]; ok && b.IsAvailable(ctx) {
			return b, nil
		}
	}
	return nil, wallcore.NewError(wallcore.ErrBackendUnavailable, "palette-extract",
		fmt.Sprintf("no available backend (preferred %q)", preferred), false, nil)
}
