package wallcore

import "testing"

func validPalette() *Palette {
	p := &Palette{
		Background: NewColor(0, 0, 0),
		Foreground: NewColor(255, 255, 255),
		Provenance: Provenance{BackendID: "test"},
	}
	return p
}

func TestValidatePaletteOK(t *testing.T) {
	if err := ValidatePalette(validPalette()); err != nil {
		t.Fatalf("ValidatePalette() error = %v, want nil", err)
	}
}

func TestValidatePaletteRejectsEqualBackgroundForeground(t *testing.T) {
	p := validPalette()
	p.Foreground = p.Background
	if err := ValidatePalette(p); err == nil {
		t.Error("ValidatePalette() expected error when background == foreground, got nil")
	}
}

func TestValidatePaletteRejectsMissingBackendID(t *testing.T) {
	p := validPalette()
	p.Provenance.BackendID = ""
	if err := ValidatePalette(p); err == nil {
		t.Error("ValidatePalette() expected error when BackendID is empty, got nil")
	}
}

func TestExpandToSixteenEmptyYieldsGrayscaleRamp(t *testing.T) {
	out := ExpandToSixteen(nil)
	if out[0] != (Color{0, 0, 0}) {
		t.Errorf("ExpandToSixteen(nil)[0] = %v, want black", out[0])
	}
	if out[PaletteSize-1] != (Color{255, 255, 255}) {
		t.Errorf("ExpandToSixteen(nil)[%d] = %v, want white", PaletteSize-1, out[PaletteSize-1])
	}
}

func TestExpandToSixteenSingleColorProducesSixteenDistinctSlots(t *testing.T) {
	out := ExpandToSixteen([]Color{NewColor(100, 100, 100)})
	seen := make(map[Color]int)
	for _, c := range out {
		seen[c]++
	}
	if len(seen) < 2 {
		t.Errorf("ExpandToSixteen of a single color produced only %d distinct slots, want variation via lightness steps", len(seen))
	}
}

func TestExpandToSixteenIsDeterministic(t *testing.T) {
	in := []Color{NewColor(10, 20, 30), NewColor(200, 50, 80)}
	a := ExpandToSixteen(in)
	b := ExpandToSixteen(in)
	if a != b {
		t.Errorf("ExpandToSixteen is not deterministic for identical input: %v != %v", a, b)
	}
}

func TestIsMonochromatic(t *testing.T) {
	grays := []Color{NewColor(10, 10, 10), NewColor(200, 200, 200)}
	if !IsMonochromatic(grays) {
		t.Error("IsMonochromatic(grays) = false, want true")
	}
	colorful := []Color{NewColor(255, 0, 0), NewColor(0, 255, 0)}
	if IsMonochromatic(colorful) {
		t.Error("IsMonochromatic(colorful) = true, want false")
	}
}
