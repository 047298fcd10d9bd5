package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

func testPalette() *wallcore.Palette {
	var colors [16]wallcore.Color
	for i := range colors {
		colors[i] = wallcore.NewColor(uint8(i), uint8(i), uint8(i))
	}
	return &wallcore.Palette{
		Colors:     colors,
		Background: wallcore.NewColor(0, 0, 0),
		Foreground: wallcore.NewColor(255, 255, 255),
		Cursor:     wallcore.NewColor(255, 255, 255),
		Provenance: wallcore.Provenance{BackendID: "in_process"},
	}
}

func testKey() wallcore.CacheKey {
	return wallcore.CacheKey{
		ImageContentHash:  "img-hash",
		PaletteConfigHash: "palette-hash",
		VariantConfigHash: "variant-hash",
		SchemaVersion:     1,
	}
}

func commitEntry(t *testing.T, c *Cache, key wallcore.CacheKey) *Entry {
	t.Helper()
	handle, err := c.BeginInsert(context.Background(), key.Fingerprint())
	if err != nil {
		t.Fatalf("BeginInsert() err = %v", err)
	}
	if err := os.WriteFile(filepath.Join(handle.PaletteDir, "colors.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write palette file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(handle.VariantDir, "blurred.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write variant file: %v", err)
	}
	entry, err := c.Commit(handle, key, testPalette(),
		map[string]string{"json": "colors.json"}, []string{"blurred.png"})
	if err != nil {
		t.Fatalf("Commit() err = %v", err)
	}
	return entry
}

func TestLookupMissOnEmptyCache(t *testing.T) {
	c, err := Open(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	_, ok, err := c.Lookup(context.Background(), testKey())
	if err != nil {
		t.Fatalf("Lookup() err = %v", err)
	}
	if ok {
		t.Fatalf("Lookup() ok = true, want false on empty cache")
	}
}

func TestCommitThenLookupRoundTrips(t *testing.T) {
	c, err := Open(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	key := testKey()
	committed := commitEntry(t, c, key)

	entry, ok, err := c.Lookup(context.Background(), key)
	if err != nil {
		t.Fatalf("Lookup() err = %v", err)
	}
	if !ok {
		t.Fatalf("Lookup() ok = false, want true after commit")
	}
	if entry.Fingerprint != committed.Fingerprint {
		t.Errorf("Fingerprint = %v, want %v", entry.Fingerprint, committed.Fingerprint)
	}
	if entry.PaletteFormatFiles["json"] != "colors.json" {
		t.Errorf("PaletteFormatFiles[json] = %q, want colors.json", entry.PaletteFormatFiles["json"])
	}
	if len(entry.VariantFiles) != 1 || entry.VariantFiles[0] != "blurred.png" {
		t.Errorf("VariantFiles = %v, want [blurred.png]", entry.VariantFiles)
	}
	if entry.Palette.Provenance.BackendID != "in_process" {
		t.Errorf("Palette.Provenance.BackendID = %q, want in_process", entry.Palette.Provenance.BackendID)
	}
}

func TestValidateRejectsConfigHashMismatch(t *testing.T) {
	c, err := Open(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	key := testKey()
	commitEntry(t, c, key)

	other := key
	other.PaletteConfigHash = "different-hash"
	// Same fingerprint input differs only in the requested key's hash, not
	// the one the entry was stored under, so this exercises a fresh lookup
	// for a key whose fingerprint happens to collide is out of scope; here
	// we instead confirm validate() rejects a manifest whose hashes don't
	// match the *requested* key once forced to look at the same directory.
	dir := entryDir(c.cfg.Root, key.Fingerprint())
	m, err := readManifest(filepath.Join(dir, "manifest.toml"))
	if err != nil {
		t.Fatalf("readManifest() err = %v", err)
	}
	if err := c.validate(other, dir, m); err == nil {
		t.Fatalf("validate() err = nil, want mismatch error")
	}
}

func TestLookupQuarantinesMissingFile(t *testing.T) {
	c, err := Open(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	key := testKey()
	commitEntry(t, c, key)

	dir := entryDir(c.cfg.Root, key.Fingerprint())
	if err := os.Remove(filepath.Join(dir, "palette", "colors.json")); err != nil {
		t.Fatalf("remove referenced file: %v", err)
	}

	_, ok, err := c.Lookup(context.Background(), key)
	if err != nil {
		t.Fatalf("Lookup() err = %v", err)
	}
	if ok {
		t.Fatalf("Lookup() ok = true, want false for an entry with a missing referenced file")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("entry dir %s still present, want moved aside into quarantine", dir)
	}
	if _, stillIndexed := c.idx.get(string(key.Fingerprint())); stillIndexed {
		t.Errorf("quarantined entry still present in index")
	}
}

func TestPruneEvictsLeastRecentlyUsedOverEntryLimit(t *testing.T) {
	c, err := Open(Config{Root: t.TempDir(), MaxEntries: 1})
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}

	older := testKey()
	older.ImageContentHash = "older-image"
	commitEntry(t, c, older)
	if err := c.Touch(older.Fingerprint(), "2020-01-01T00:00:00Z"); err != nil {
		t.Fatalf("Touch() err = %v", err)
	}

	newer := testKey()
	newer.ImageContentHash = "newer-image"
	commitEntry(t, c, newer) // Commit triggers pruneIfOverBudget, which evicts older.

	if _, ok, _ := c.Lookup(context.Background(), older); ok {
		t.Errorf("older entry still present after eviction, want evicted")
	}
	if _, ok, _ := c.Lookup(context.Background(), newer); !ok {
		t.Errorf("newer entry missing after eviction, want retained")
	}
}

func TestPruneSkipsLockedEntry(t *testing.T) {
	c, err := Open(Config{Root: t.TempDir(), MaxEntries: 1})
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}

	locked := testKey()
	locked.ImageContentHash = "locked-image"
	commitEntry(t, c, locked)
	if err := c.Touch(locked.Fingerprint(), "2020-01-01T00:00:00Z"); err != nil {
		t.Fatalf("Touch() err = %v", err)
	}

	lock, err := acquireLock(context.Background(), c.locksDir, string(locked.Fingerprint()), c.lockTimeout())
	if err != nil {
		t.Fatalf("acquireLock() err = %v", err)
	}
	defer lock.release()

	other := testKey()
	other.ImageContentHash = "other-image"
	commitEntry(t, c, other)

	if _, ok, _ := c.Lookup(context.Background(), locked); !ok {
		t.Errorf("locked entry evicted during prune, want it skipped while locked")
	}
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c, err := Open(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	key := testKey()
	commitEntry(t, c, key)

	if err := c.Invalidate(key.Fingerprint()); err != nil {
		t.Fatalf("Invalidate() err = %v", err)
	}
	if _, ok, _ := c.Lookup(context.Background(), key); ok {
		t.Errorf("Lookup() ok = true after Invalidate, want false")
	}
}
