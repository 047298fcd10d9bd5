// Package imageio loads source images from the local filesystem and
// computes the content hashes the cache layer keys on. Adapted from
// tinct/internal/image/loader.go's FileLoader, trimmed to the local-file-only
// case the spec calls for (the teacher's HTTP(S) SmartLoader is dropped —
// see DESIGN.md).
package imageio

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/webp"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Load decodes the image at path. A missing file, a directory, or
// undecodable bytes are all reported as wallcore.ErrImageInvalid, matching
// the orchestrator's "fail fast before any cache lookup" contract (spec §4.7
// step 1, §8's zero-byte-file boundary case).
func Load(path string) (image.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrImageInvalid, "load", fmt.Sprintf("cannot stat %s", path), false, err)
	}
	if info.IsDir() {
		return nil, wallcore.NewError(wallcore.ErrImageInvalid, "load", fmt.Sprintf("%s is a directory", path), false, nil)
	}
	if info.Size() == 0 {
		return nil, wallcore.NewError(wallcore.ErrImageInvalid, "load", fmt.Sprintf("%s is empty", path), false, nil)
	}

	file, err := os.Open(path) // #nosec G304 - caller-specified image path, intended to be read
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrImageInvalid, "load", fmt.Sprintf("cannot open %s", path), false, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, wallcore.NewError(wallcore.ErrImageInvalid, "load", fmt.Sprintf("cannot decode %s (format hint: %s)", path, format), false, err)
	}
	return img, nil
}

// ContentHash returns the hex-encoded SHA-256 hash of the raw bytes at
// path — the image_content_hash the fingerprint is built from (spec §3).
// Hashing the bytes directly (not the decoded pixels) means re-encoding a
// visually-identical image produces a different fingerprint, which is the
// correct, conservative behavior: the cache promises byte-identical
// re-derivation only when the *input bytes* match.
func ContentHash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", wallcore.NewError(wallcore.ErrImageInvalid, "fingerprint", fmt.Sprintf("cannot stat %s", path), false, err)
	}
	if info.IsDir() {
		return "", wallcore.NewError(wallcore.ErrImageInvalid, "fingerprint", fmt.Sprintf("%s is a directory", path), false, nil)
	}
	if info.Size() == 0 {
		return "", wallcore.NewError(wallcore.ErrImageInvalid, "fingerprint", fmt.Sprintf("%s is empty", path), false, nil)
	}

	file, err := os.Open(path) // #nosec G304 - caller-specified image path, intended to be read
	if err != nil {
		return "", wallcore.NewError(wallcore.ErrImageInvalid, "fingerprint", fmt.Sprintf("cannot open %s", path), false, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", wallcore.NewError(wallcore.ErrImageInvalid, "fingerprint", fmt.Sprintf("cannot read %s", path), false, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Dimensions returns the pixel width/height of the image at path without
// fully decoding it. The pipeline does not call it, so variant outputs are
// not checked against the source's size (spec §3's Variant invariant).
func Dimensions(path string) (width, height int, err error) {
	file, err := os.Open(path) // #nosec G304 - caller-specified image path, intended to be read
	if err != nil {
		return 0, 0, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot decode config for %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
