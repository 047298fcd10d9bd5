package cache

import (
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// indexRecord is the in-memory-plus-persisted access-stats row for one
// entry, kept separate from the per-entry manifest so a lookup's
// "does this fingerprint exist and what's its size/recency" question never
// requires opening every entry's manifest file (spec §4.6's index.db).
type indexRecord struct {
	Fingerprint     string `toml:"fingerprint"`
	SizeBytes       int64  `toml:"size_bytes"`
	CreatedAtUTC    string `toml:"created_at_utc"`
	LastAccessedUTC string `toml:"last_accessed_utc"`
	SchemaVersion   int    `toml:"schema_version"`
}

type indexFile struct {
	Entries []indexRecord `toml:"entries"`
}

// index is the single-writer/multi-reader in-memory index described in spec
// §4.6 — a reader-writer lock over an in-memory map, persisted to a small
// structured file. Writers (commit/invalidate/prune) take the write lock;
// lookups and touch take the read/write lock as appropriate.
type index struct {
	mu      sync.RWMutex
	path    string
	records map[string]indexRecord
}

func loadIndex(path string) (*index, error) {
	idx := &index{path: path, records: make(map[string]indexRecord)}
	raw, err := os.ReadFile(path) // #nosec G304 - fixed path under the cache root
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	var f indexFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", path, err)
	}
	for _, r := range f.Entries {
		idx.records[r.Fingerprint] = r
	}
	return idx, nil
}

// persist flushes the index to disk. Caller must hold at least a read lock
// (the data being serialized is a snapshot of the map already under lock).
func (idx *index) persist() error {
	f := indexFile{Entries: make([]indexRecord, 0, len(idx.records))}
	for _, r := range idx.records {
		f.Entries = append(f.Entries, r)
	}
	raw, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return os.WriteFile(idx.path, raw, 0o644) // #nosec G306 - cache-local metadata, not sensitive
}

func (idx *index) get(fp string) (indexRecord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	r, ok := idx.records[fp]
	return r, ok
}

func (idx *index) put(r indexRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records[r.Fingerprint] = r
	return idx.persist()
}

func (idx *index) remove(fp string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.records, fp)
	return idx.persist()
}

func (idx *index) touch(fp string, lastAccessedUTC string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	r, ok := idx.records[fp]
	if !ok {
		return fmt.Errorf("no index record for fingerprint %s", fp)
	}
	r.LastAccessedUTC = lastAccessedUTC
	idx.records[fp] = r
	return idx.persist()
}

func (idx *index) totalSize() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var total int64
	for _, r := range idx.records {
		total += r.SizeBytes
	}
	return total
}

func (idx *index) snapshot() []indexRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]indexRecord, 0, len(idx.records))
	for _, r := range idx.records {
		out = append(out, r)
	}
	return out
}
