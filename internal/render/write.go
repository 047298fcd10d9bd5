package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// WriteAtomic writes data to path by writing to a sibling temp file first
// and renaming it into place, so a reader never observes a partially written
// output file (spec §4.3's atomic-write requirement, the same build-then-
// rename contract the cache layer uses for published entries).
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wallhue-render-*")
	if err != nil {
		return wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot create temp file in %s", dir), false, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot write %s", tmpPath), false, err)
	}
	if err := tmp.Close(); err != nil {
		return wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot close %s", tmpPath), false, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot chmod %s", tmpPath), false, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot rename %s to %s", tmpPath, path), false, err)
	}
	return nil
}
