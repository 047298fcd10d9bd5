package wallcore

import "testing"

func TestParseHexRoundTrip(t *testing.T) {
	cases := []string{"#ff0080", "00ff00", "#000000", "ffffff"}
	for _, in := range cases {
		c, err := ParseHex(in)
		if err != nil {
			t.Fatalf("ParseHex(%q) error = %v", in, err)
		}
		want := in
		if want[0] != '#' {
			want = "#" + want
		}
		if c.Hex() != want {
			t.Errorf("ParseHex(%q).Hex() = %q, want %q", in, c.Hex(), want)
		}
	}
}

func TestParseHexInvalid(t *testing.T) {
	for _, in := range []string{"", "#fff", "#gggggg", "12345"} {
		if _, err := ParseHex(in); err == nil {
			t.Errorf("ParseHex(%q) expected error, got nil", in)
		}
	}
}

func TestLuminanceOrdering(t *testing.T) {
	black := NewColor(0, 0, 0)
	white := NewColor(255, 255, 255)
	if black.Luminance() >= white.Luminance() {
		t.Errorf("expected black luminance < white luminance, got %f >= %f", black.Luminance(), white.Luminance())
	}
}

func TestSaturationGrayIsZero(t *testing.T) {
	gray := NewColor(128, 128, 128)
	if s := gray.Saturation(); s != 0 {
		t.Errorf("Saturation() of a gray color = %f, want 0", s)
	}
}

func TestWithLightnessShiftClamps(t *testing.T) {
	white := NewColor(255, 255, 255)
	if shifted := white.WithLightnessShift(0.5); shifted != white {
		t.Errorf("WithLightnessShift(0.5) on white = %v, want unchanged (clamped)", shifted)
	}
	black := NewColor(0, 0, 0)
	if shifted := black.WithLightnessShift(-0.5); shifted != black {
		t.Errorf("WithLightnessShift(-0.5) on black = %v, want unchanged (clamped)", shifted)
	}
}
