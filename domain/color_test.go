package domain

import "testing"

func TestColorIDValidate(t *testing.T) {
	palette := 8
	if err := Transparent.Validate(palette); err != nil {
		t.Fatalf("transparent should always validate, got %v", err)
	}
	if err := ColorID(0).Validate(palette); err != nil {
		t.Fatalf("first palette color should validate, got %v", err)
	}
	if err := ColorID(palette - 1).Validate(palette); err != nil {
		t.Fatalf("last palette color should validate, got %v", err)
	}
	if err := ColorID(palette).Validate(palette); err == nil {
		t.Fatal("expected out-of-range color id to fail validation")
	}
	if err := ColorID(-2).Validate(palette); err == nil {
		t.Fatal("expected color id below transparent sentinel to fail validation")
	}
}

func TestRGBColorToRGBA(t *testing.T) {
	c := RGBColor{R: 10, G: 20, B: 30}
	got := c.ToRGBA()
	want := [4]byte{10, 20, 30, 0xff}
	if got != want {
		t.Fatalf("ToRGBA() = %v, want %v", got, want)
	}
}

func TestWorldPaletteLen(t *testing.T) {
	w := World{Palette: []RGBColor{{}, {}, {}}}
	if got := w.PaletteLen(); got != 3 {
		t.Fatalf("PaletteLen() = %d, want 3", got)
	}
}
