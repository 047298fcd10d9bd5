package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Config configures a Cache, named and defaulted per spec §6.
type Config struct {
	Root              string
	MaxBytes          int64
	MaxEntries        int
	LowWatermarkBytes int64
	SchemaVersion     int
	LockTimeoutMS     int
}

// Entry is the reconstructed view of a committed cache entry, returned by
// Lookup, matching spec §3's CacheEntry shape.
type Entry struct {
	Fingerprint        wallcore.Fingerprint
	PaletteDir         string
	VariantDir         string
	Palette            *wallcore.Palette
	PaletteFormatFiles map[string]string // format name -> filename under PaletteDir
	VariantFiles       []string
	CreatedAtUTC       string
	LastAccessedUTC    string
	SizeBytes          int64
	SchemaVersion      int
}

// Cache is the single handle the orchestrator owns; all cache state lives
// behind it (spec §9's "global mutable cache state" redesign note —
// replaced by exactly this kind of owned handle).
type Cache struct {
	cfg      Config
	idx      *index
	locksDir string
}

// Open loads (or initializes) the cache rooted at cfg.Root, per spec §4.6's
// on-disk layout: index.db, entries/, tmp/.
func Open(cfg Config) (*Cache, error) {
	if cfg.LockTimeoutMS <= 0 {
		cfg.LockTimeoutMS = 5000
	}
	for _, dir := range []string{cfg.Root, entriesDir(cfg.Root), tmpDir(cfg.Root)} {
		if err := os.MkdirAll(dir, 0o755); err != nil { // #nosec G301 - cache-owned directory tree
			return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
		}
	}
	idx, err := loadIndex(filepath.Join(cfg.Root, "index.db"))
	if err != nil {
		return nil, err
	}
	return &Cache{cfg: cfg, idx: idx, locksDir: filepath.Join(cfg.Root, "locks")}, nil
}

func entriesDir(root string) string            { return filepath.Join(root, "entries") }
func tmpDir(root string) string                 { return filepath.Join(root, "tmp") }
func entryDir(root string, fp wallcore.Fingerprint) string { return filepath.Join(entriesDir(root), string(fp)) }

// Disabled reports whether this cache is configured to never read or write
// entries. spec §8's max_bytes=0 boundary scenario means "no caching at
// all," not "caching with a zero-byte budget that immediately evicts
// everything" — a zero budget can't hold even one entry, so treating it as
// a live cache would just thrash Commit/Prune every call. Callers check
// this before Lookup/BeginInsert so a miss is never confused with "disabled."
func (c *Cache) Disabled() bool {
	return c.cfg.MaxBytes == 0
}

func (c *Cache) lockTimeout() time.Duration {
	return time.Duration(c.cfg.LockTimeoutMS) * time.Millisecond
}

// Lookup returns the entry for key's fingerprint if present and valid,
// applying the four-point validation contract from spec §4.6: schema
// version matches, referenced files exist and are non-empty, the stored
// config hashes match the requested key, and the entry's manifest parses.
// An invalid entry is quarantined (moved to tmp/corrupt-<ts>/) and Lookup
// reports a miss rather than erroring, so a corrupt entry never blocks
// forward progress (spec §7: CacheCorrupt "never fatal for the caller").
func (c *Cache) Lookup(ctx context.Context, key wallcore.CacheKey) (*Entry, bool, error) {
	fp := key.Fingerprint()
	if _, ok := c.idx.get(string(fp)); !ok {
		return nil, false, nil
	}

	dir := entryDir(c.cfg.Root, fp)
	manifestPath := filepath.Join(dir, "manifest.toml")
	m, err := readManifest(manifestPath)
	if err != nil {
		c.quarantine(dir, fp)
		return nil, false, nil
	}

	if err := c.validate(key, dir, m); err != nil {
		c.quarantine(dir, fp)
		return nil, false, nil
	}

	paletteSrc := ""
	for _, name := range m.PaletteFormats {
		paletteSrc = filepath.Join(dir, "palette", name)
		break
	}
	entry := &Entry{
		Fingerprint:        fp,
		PaletteDir:         filepath.Join(dir, "palette"),
		VariantDir:         filepath.Join(dir, "variants"),
		Palette:            m.toPalette(paletteSrc),
		PaletteFormatFiles: m.PaletteFormats,
		VariantFiles:       m.VariantFiles,
		CreatedAtUTC:       m.CreatedAtUTC,
		LastAccessedUTC:    m.LastAccessedUTC,
		SizeBytes:          m.SizeBytes,
		SchemaVersion:      m.SchemaVersion,
	}
	return entry, true, nil
}

// validate implements the four checks spec §4.6 requires before trusting a
// stored entry: schema version, config hash equality, and file presence.
func (c *Cache) validate(key wallcore.CacheKey, dir string, m *Manifest) error {
	if m.SchemaVersion != key.SchemaVersion {
		return fmt.Errorf("schema version mismatch: have %d, want %d", m.SchemaVersion, key.SchemaVersion)
	}
	if m.ImageContentHash != key.ImageContentHash ||
		m.PaletteConfigHash != key.PaletteConfigHash ||
		m.VariantConfigHash != key.VariantConfigHash {
		return fmt.Errorf("config hash mismatch for entry %s", m.Fingerprint)
	}
	paletteFileNames := make([]string, 0, len(m.PaletteFormats))
	for _, name := range m.PaletteFormats {
		paletteFileNames = append(paletteFileNames, name)
	}
	for _, rel := range append(append([]string{}, prefixEach(paletteFileNames, "palette")...), prefixEach(m.VariantFiles, "variants")...) {
		info, err := os.Stat(filepath.Join(dir, rel))
		if err != nil {
			return fmt.Errorf("referenced file missing: %s: %w", rel, err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("referenced file empty: %s", rel)
		}
	}
	return nil
}

func prefixEach(names []string, prefix string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(prefix, n)
	}
	return out
}

// quarantine moves a corrupt entry directory aside under tmp/corrupt-<ts>/
// and drops it from the index, per spec §4.6's corruption-quarantine
// behavior.
func (c *Cache) quarantine(dir string, fp wallcore.Fingerprint) {
	dest := filepath.Join(tmpDir(c.cfg.Root), fmt.Sprintf("corrupt-%d-%s", time.Now().UnixNano(), fp))
	_ = os.Rename(dir, dest)
	_ = c.idx.remove(string(fp))
}

// Touch updates an entry's last-accessed timestamp on a cache hit, the
// signal Prune's LRU ordering relies on.
func (c *Cache) Touch(fp wallcore.Fingerprint, nowUTC string) error {
	dir := entryDir(c.cfg.Root, fp)
	manifestPath := filepath.Join(dir, "manifest.toml")
	m, err := readManifest(manifestPath)
	if err != nil {
		return err
	}
	m.LastAccessedUTC = nowUTC
	if err := writeManifest(manifestPath, *m); err != nil {
		return err
	}
	return c.idx.touch(string(fp), nowUTC)
}

// Invalidate removes an entry unconditionally (not a corruption finding —
// used when the caller knows the entry should no longer be trusted, e.g. a
// schema bump). The directory is moved aside rather than deleted outright,
// consistent with the rest of the cache never doing a bare destructive
// delete of entry data.
func (c *Cache) Invalidate(fp wallcore.Fingerprint) error {
	dir := entryDir(c.cfg.Root, fp)
	dest := filepath.Join(tmpDir(c.cfg.Root), fmt.Sprintf("invalidated-%d-%s", time.Now().UnixNano(), fp))
	if err := os.Rename(dir, dest); err != nil && !os.IsNotExist(err) {
		return err
	}
	return c.idx.remove(string(fp))
}
