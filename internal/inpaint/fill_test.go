package inpaint

import (
	"slices"
	"testing"

	"wmclean/internal/raster"
)

func solid(w, h int, r, g, b uint8) *raster.Frame {
	f := raster.NewFrame(w, h)
	for i := 0; i < len(f.Pix); i += 4 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = r, g, b, 0xff
	}
	return f
}

func TestFillReplacesRectangleWithSurroundingColour(t *testing.T) {
	f := solid(20, 20, 0, 0, 0)
	m := raster.NewMask(20, 20)
	for y := 6; y < 12; y++ {
		for x := 5; x < 13; x++ {
			i := f.Offset(x, y)
			f.Pix[i], f.Pix[i+1], f.Pix[i+2] = 200, 200, 200
			m.Set(x, y, true)
		}
	}

	out, stats := Fill(f, m, Options{})
	if stats.Unfilled != 0 || stats.Filled != m.Count() {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Passes < 2 {
		t.Fatalf("expected the interior to need more than one pass, got %d", stats.Passes)
	}
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 0 || out.Pix[i+1] != 0 || out.Pix[i+2] != 0 {
			t.Fatalf("pixel %d not black after fill: %v", i/4, out.Pix[i:i+3])
		}
	}
	if r, _, _ := f.RGB(8, 8); r != 200 {
		t.Fatal("input frame was modified")
	}
}

func TestFillAveragesUnmaskedNeighbours(t *testing.T) {
	f := solid(5, 5, 10, 20, 30)
	// Right half brighter so the centre average is a blend.
	for y := 0; y < 5; y++ {
		for x := 3; x < 5; x++ {
			i := f.Offset(x, y)
			f.Pix[i], f.Pix[i+1], f.Pix[i+2] = 110, 120, 131
		}
	}
	m := raster.NewMask(5, 5)
	m.Set(2, 2, true)

	out, _ := Fill(f, m, Options{Radius: 2, MaxPasses: 1})
	// 24 known neighbours: 14 dark (cols 0..2 minus centre), 10 bright.
	wantR := uint8((14*10 + 10*110 + 12) / 24)
	if r, _, _ := out.RGB(2, 2); r != wantR {
		t.Fatalf("centre red = %d want %d", r, wantR)
	}
}

func TestFillLeavesFullyMaskedFrameUnchanged(t *testing.T) {
	f := solid(6, 4, 90, 90, 90)
	m := raster.NewMask(6, 4)
	for i := range m.Bits {
		m.Bits[i] = true
	}
	out, stats := Fill(f, m, Options{})
	if !slices.Equal(out.Pix, f.Pix) {
		t.Fatal("expected untouched frame when no known neighbours exist")
	}
	if stats.Filled != 0 || stats.Unfilled != 24 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestFillEmptyMaskIsIdentity(t *testing.T) {
	f := solid(4, 4, 1, 2, 3)
	out, stats := Fill(f, raster.NewMask(4, 4), Options{})
	if !slices.Equal(out.Pix, f.Pix) || stats.Masked != 0 {
		t.Fatal("expected identity for empty mask")
	}
}

func TestFillRespectsPassLimit(t *testing.T) {
	f := solid(30, 1, 0, 0, 0)
	m := raster.NewMask(30, 1)
	for x := 1; x < 30; x++ {
		m.Set(x, 0, true)
	}
	_, stats := Fill(f, m, Options{Radius: 2, MaxPasses: 3})
	if stats.Passes != 3 || stats.Filled != 6 || stats.Unfilled != 23 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
