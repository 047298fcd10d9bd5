package cache

import (
	"fmt"
	"os"
	"sort"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Prune evicts least-recently-used entries (skipping any currently locked
// by an in-flight insert) until the cache is at or below both
// low_watermark_bytes and max_entries, per spec §4.6/§8's eviction
// scenario. It is safe to call unconditionally; a cache already under
// budget is a no-op.
func (c *Cache) Prune() error {
	records := c.idx.snapshot()
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastAccessedUTC < records[j].LastAccessedUTC // oldest first
	})

	total := int64(0)
	for _, r := range records {
		total += r.SizeBytes
	}

	for _, r := range records {
		overBytes := c.cfg.MaxBytes > 0 && total > c.cfg.LowWatermarkBytes
		overCount := c.cfg.MaxEntries > 0 && len(records) > c.cfg.MaxEntries
		if !overBytes && !overCount {
			break
		}
		if isLocked(c.locksDir, r.Fingerprint) {
			continue // spec §4.6: locked entries are never evicted
		}

		dir := entryDir(c.cfg.Root, wallcore.Fingerprint(r.Fingerprint))
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("evict entry %s: %w", r.Fingerprint, err)
		}
		if err := c.idx.remove(r.Fingerprint); err != nil {
			return fmt.Errorf("remove evicted entry from index: %w", err)
		}
		total -= r.SizeBytes
		records = removeRecord(records, r.Fingerprint)
	}
	return nil
}

// removeRecord returns a fresh slice with fp's record dropped. It must not
// reuse records' backing array: Prune calls this mid-range over records, and
// an in-place compaction would shift not-yet-visited elements into already
// visited indices, silently skipping them for this eviction pass.
func removeRecord(records []indexRecord, fp string) []indexRecord {
	out := make([]indexRecord, 0, len(records))
	for _, r := range records {
		if r.Fingerprint != fp {
			out = append(out, r)
		}
	}
	return out
}

// pruneIfOverBudget runs Prune after a commit if the cache's total size or
// entry count now exceeds its configured limits. Errors are swallowed into
// a best-effort retry on the next commit rather than failing the commit
// that just succeeded — per spec §7, CacheQuotaExceeded is a soft error:
// "prune; continue... emit warning and proceed without caching" never
// unwinds an already-successful publish.
func (c *Cache) pruneIfOverBudget() {
	total := c.idx.totalSize()
	count := len(c.idx.snapshot())
	if (c.cfg.MaxBytes > 0 && total > c.cfg.MaxBytes) || (c.cfg.MaxEntries > 0 && count > c.cfg.MaxEntries) {
		_ = c.Prune()
	}
}
