package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// InsertHandle is the staging area for a not-yet-committed cache entry. The
// caller (the orchestrator, driving the pipeline) writes palette output
// files under PaletteDir and variant files under VariantDir, then calls
// Commit to atomically publish the staged directory as the entry for
// Fingerprint. Scratch directories are named with google/uuid, matching
// tinct's own scratch-artifact naming convention for subprocess I/O.
type InsertHandle struct {
	Fingerprint wallcore.Fingerprint
	PaletteDir  string
	VariantDir  string

	stagingDir string
	lock       *entryLock
}

// BeginInsert acquires the per-fingerprint lock and creates a staging
// directory for a new entry, per spec §4.7 step 4 ("cache.begin_insert(fingerprint)
// (or proceed without cache if busy past timeout)"). If the lock cannot be
// acquired within the configured timeout, BeginInsert returns
// (nil, wallcore.ErrInternal) and the caller is expected to proceed without
// caching rather than fail outright.
func (c *Cache) BeginInsert(ctx context.Context, fp wallcore.Fingerprint) (*InsertHandle, error) {
	lock, err := acquireLock(ctx, c.locksDir, string(fp), c.lockTimeout())
	if err != nil {
		return nil, err
	}

	staging := filepath.Join(tmpDir(c.cfg.Root), fmt.Sprintf("%s-%d-%s", fp, os.Getpid(), uuid.NewString()))
	paletteDir := filepath.Join(staging, "palette")
	variantDir := filepath.Join(staging, "variants")
	for _, d := range []string{paletteDir, variantDir} {
		if err := os.MkdirAll(d, 0o755); err != nil { // #nosec G301 - cache-internal staging directory
			lock.release()
			return nil, fmt.Errorf("create staging dir %s: %w", d, err)
		}
	}

	return &InsertHandle{
		Fingerprint: fp,
		PaletteDir:  paletteDir,
		VariantDir:  variantDir,
		stagingDir:  staging,
		lock:        lock,
	}, nil
}

// Abort releases the handle's lock and discards its staging directory
// without publishing anything, used when the pipeline fails before any
// entry worth caching exists.
func (h *InsertHandle) Abort() error {
	if h == nil {
		return nil
	}
	os.RemoveAll(h.stagingDir)
	return h.lock.release()
}

// Commit finalizes a staged insert: writes the manifest, renames the
// staging directory into entries/<fingerprint>, updates the index, and
// triggers eviction if the cache is now over budget. Commit always releases
// the handle's lock, whether it succeeds or fails, since a failed commit
// leaves nothing else holding the fingerprint.
func (c *Cache) Commit(handle *InsertHandle, key wallcore.CacheKey, palette *wallcore.Palette, paletteFormats map[string]string, variantFiles []string) (*Entry, error) {
	defer handle.lock.release()

	now := time.Now().UTC().Format(time.RFC3339)
	m := manifestFromPalette(key, palette)
	m.CreatedAtUTC = now
	m.LastAccessedUTC = now
	m.PaletteFormats = paletteFormats
	m.VariantFiles = variantFiles

	size, err := dirSize(handle.stagingDir)
	if err != nil {
		return nil, fmt.Errorf("measure staged entry size: %w", err)
	}
	m.SizeBytes = size

	if err := writeManifest(filepath.Join(handle.stagingDir, "manifest.toml"), m); err != nil {
		return nil, err
	}

	finalDir := entryDir(c.cfg.Root, handle.Fingerprint)
	if err := os.RemoveAll(finalDir); err != nil {
		return nil, fmt.Errorf("clear stale entry dir: %w", err)
	}
	if err := os.Rename(handle.stagingDir, finalDir); err != nil {
		return nil, fmt.Errorf("publish entry %s: %w", handle.Fingerprint, err)
	}

	if err := c.idx.put(indexRecord{
		Fingerprint:     string(handle.Fingerprint),
		SizeBytes:       size,
		CreatedAtUTC:    now,
		LastAccessedUTC: now,
		SchemaVersion:   key.SchemaVersion,
	}); err != nil {
		return nil, fmt.Errorf("update index: %w", err)
	}

	c.pruneIfOverBudget()

	return &Entry{
		Fingerprint:        handle.Fingerprint,
		PaletteDir:         filepath.Join(finalDir, "palette"),
		VariantDir:         filepath.Join(finalDir, "variants"),
		Palette:            palette,
		PaletteFormatFiles: paletteFormats,
		VariantFiles:       variantFiles,
		CreatedAtUTC:       now,
		LastAccessedUTC:    now,
		SizeBytes:          size,
		SchemaVersion:      key.SchemaVersion,
	}, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
