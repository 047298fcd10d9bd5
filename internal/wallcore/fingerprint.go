package wallcore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is the short stable identifier the cache keys entries on: the
// hash of (image_content_hash, palette_config_hash, variant_config_hash,
// schema_version) (spec §3).
type Fingerprint string

// CacheKey is the unhashed tuple a Fingerprint is derived from. Keeping the
// components around (not just the hash) lets the cache's validation step
// recompute and compare each part independently (spec §4.6's four-point
// validation contract).
type CacheKey struct {
	ImageContentHash  string
	PaletteConfigHash string
	VariantConfigHash string
	SchemaVersion     int
}

// Fingerprint hashes the CacheKey tuple down to a short stable identifier.
func (k CacheKey) Fingerprint() Fingerprint {
	h := sha256.New()
	fmt.Fprintf(h, "v%d|%s|%s|%s", k.SchemaVersion, k.ImageContentHash, k.PaletteConfigHash, k.VariantConfigHash)
	return Fingerprint(hex.EncodeToString(h.Sum(nil))[:24])
}

// HashStrings folds an ordered list of strings into a stable hex digest.
// Used to build PaletteConfigHash/VariantConfigHash from their structured
// inputs (backend id + options, format list, variant effect chains, etc.)
// without requiring every caller to reimplement canonical hashing.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s|", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
