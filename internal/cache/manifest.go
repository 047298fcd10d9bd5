// Package cache implements the content-addressed, single-flight, LRU-evicted
// on-disk cache described in spec §4.6: one directory per fingerprint
// holding a palette output set, a variant set, and a TOML manifest, plus a
// small structured index file tracking access stats across entries. Grounded
// on tinct's general "small structured file, human-inspectable" convention
// (its plugin manifests and config are all TOML/YAML, never a binary
// format) and on pelletier/go-toml/v2, the TOML codec already wired for
// internal/render's toml output format.
package cache

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Manifest is the on-disk record for one cache entry, written to
// entries/<fingerprint>/manifest.toml. It embeds the CacheKey tuple so
// lookup can re-validate that the stored entry actually matches the
// requested configuration, not just its hashed fingerprint (spec §4.6's
// four-point validation contract: schema version, files present, config
// hashes match, content hash matches).
type Manifest struct {
	Fingerprint       string            `toml:"fingerprint"`
	ImageContentHash  string            `toml:"image_content_hash"`
	PaletteConfigHash string            `toml:"palette_config_hash"`
	VariantConfigHash string            `toml:"variant_config_hash"`
	SchemaVersion     int               `toml:"schema_version"`
	CreatedAtUTC      string            `toml:"created_at_utc"`
	LastAccessedUTC   string            `toml:"last_accessed_utc"`
	SizeBytes         int64             `toml:"size_bytes"`
	PaletteFormats    map[string]string `toml:"palette_formats"` // format name -> filename under palette/
	VariantFiles      []string          `toml:"variant_files"`

	PaletteColors     [16]string `toml:"palette_colors"`
	PaletteBackground string     `toml:"palette_background"`
	PaletteForeground string     `toml:"palette_foreground"`
	PaletteCursor     string     `toml:"palette_cursor"`
	PaletteBackendID  string     `toml:"palette_backend_id"`
}

func manifestFromPalette(key wallcore.CacheKey, p *wallcore.Palette) Manifest {
	var colors [16]string
	for i, c := range p.Colors {
		colors[i] = c.Hex()
	}
	return Manifest{
		Fingerprint:       string(key.Fingerprint()),
		ImageContentHash:  key.ImageContentHash,
		PaletteConfigHash: key.PaletteConfigHash,
		VariantConfigHash: key.VariantConfigHash,
		SchemaVersion:     key.SchemaVersion,
		PaletteColors:     colors,
		PaletteBackground: p.Background.Hex(),
		PaletteForeground: p.Foreground.Hex(),
		PaletteCursor:     p.Cursor.Hex(),
		PaletteBackendID:  p.Provenance.BackendID,
	}
}

func (m Manifest) toPalette(sourceImagePath string) *wallcore.Palette {
	var colors [16]wallcore.Color
	for i, hex := range m.PaletteColors {
		c, _ := wallcore.ParseHex(hex)
		colors[i] = c
	}
	bg, _ := wallcore.ParseHex(m.PaletteBackground)
	fg, _ := wallcore.ParseHex(m.PaletteForeground)
	cur, _ := wallcore.ParseHex(m.PaletteCursor)
	return &wallcore.Palette{
		Colors:     colors,
		Background: bg,
		Foreground: fg,
		Cursor:     cur,
		Provenance: wallcore.Provenance{
			SourceImageAbsolutePath: sourceImagePath,
			BackendID:               m.PaletteBackendID,
			GeneratedAtUTC:          m.CreatedAtUTC,
		},
	}
}

func readManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - path constructed from cache-internal fingerprint directory
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

func writeManifest(path string, m Manifest) error {
	raw, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, raw, 0o644) // #nosec G306 - manifest is not sensitive, cache-local metadata
}
