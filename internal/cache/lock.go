package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// entryLock is a per-fingerprint advisory lock implemented with
// os.OpenFile(O_CREATE|O_EXCL) lock files under <cache_root>/locks/, kept in
// their own directory rather than inside the entry directory so a locked
// entry's presence doesn't interfere with prune's directory listing. No
// third-party advisory-file-lock library appears anywhere in the retrieval
// pack (checked go.mod across every example repo); O_EXCL-based locking is
// the standard portable stdlib technique and is documented in DESIGN.md as
// the one deliberately stdlib-only piece of the cache layer.
type entryLock struct {
	path string
	file *os.File
}

// acquireLock spins on O_CREATE|O_EXCL until it succeeds, the context is
// cancelled, or timeout elapses, per spec §4.6's "cache operations block on
// per-fingerprint advisory locks with a configured timeout."
func acquireLock(ctx context.Context, locksDir, fingerprint string, timeout time.Duration) (*entryLock, error) {
	if err := os.MkdirAll(locksDir, 0o755); err != nil { // #nosec G301 - cache-internal directory
		return nil, fmt.Errorf("create locks dir: %w", err)
	}
	path := filepath.Join(locksDir, fingerprint+".lock")
	deadline := time.Now().Add(timeout)
	const pollInterval = 20 * time.Millisecond

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) // #nosec G304 G302 - lock file path built from cache-internal fingerprint
		if err == nil {
			return &entryLock{path: path, file: f}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			return nil, wallcore.NewError(wallcore.ErrInternal, "cache",
				fmt.Sprintf("timed out waiting for lock on %s", fingerprint), true, nil)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (l *entryLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.file.Close()
	return os.Remove(l.path)
}

// isLocked reports whether fingerprint currently has a live lock file,
// without attempting to acquire it — used by prune to skip in-flight
// entries (spec §4.6's "locked entries are not evicted").
func isLocked(locksDir, fingerprint string) bool {
	_, err := os.Stat(filepath.Join(locksDir, fingerprint+".lock"))
	return err == nil
}
