package wallcore

import "testing"

func TestFingerprintIsDeterministic(t *testing.T) {
	k := CacheKey{ImageContentHash: "abc", PaletteConfigHash: "def", VariantConfigHash: "ghi", SchemaVersion: 1}
	if k.Fingerprint() != k.Fingerprint() {
		t.Error("Fingerprint() is not stable across repeated calls on the same key")
	}
}

func TestFingerprintDiffersOnAnyComponent(t *testing.T) {
	base := CacheKey{ImageContentHash: "abc", PaletteConfigHash: "def", VariantConfigHash: "ghi", SchemaVersion: 1}
	variants := []CacheKey{
		{ImageContentHash: "xyz", PaletteConfigHash: "def", VariantConfigHash: "ghi", SchemaVersion: 1},
		{ImageContentHash: "abc", PaletteConfigHash: "xyz", VariantConfigHash: "ghi", SchemaVersion: 1},
		{ImageContentHash: "abc", PaletteConfigHash: "def", VariantConfigHash: "xyz", SchemaVersion: 1},
		{ImageContentHash: "abc", PaletteConfigHash: "def", VariantConfigHash: "ghi", SchemaVersion: 2},
	}
	baseFP := base.Fingerprint()
	for i, v := range variants {
		if v.Fingerprint() == baseFP {
			t.Errorf("variant %d: Fingerprint collided with base despite differing component", i)
		}
	}
}

func TestHashStringsAvoidsConcatenationAmbiguity(t *testing.T) {
	a := HashStrings("ab", "c")
	b := HashStrings("a", "bc")
	if a == b {
		t.Error("HashStrings(\"ab\",\"c\") == HashStrings(\"a\",\"bc\"), want distinct hashes (length-prefixed encoding)")
	}
}
