package document

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"wmclean/internal/raster"
)

func solidFrame(w, h int, v uint8) *raster.Frame {
	f := raster.NewFrame(w, h)
	for i := 0; i < len(f.Pix); i += 4 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = v, v, v, 255
	}
	return f
}

func threePageDoc(t *testing.T) []byte {
	t.Helper()
	doc, err := Reassemble([]*raster.Frame{
		solidFrame(100, 50, 10),
		solidFrame(100, 50, 120),
		solidFrame(60, 80, 250),
	}, 2)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	return doc
}

func TestReassembleProducesOnePagePerFrame(t *testing.T) {
	doc := threePageDoc(t)
	codec := NewPDFCodec()
	n, err := codec.PageCount(doc)
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pages, got %d", n)
	}
	if _, err := Reassemble(nil, 2); err == nil {
		t.Fatal("expected error for empty frame list")
	}
}

func TestCodecExtractAndMerge(t *testing.T) {
	doc := threePageDoc(t)
	codec := NewPDFCodec()

	head, err := codec.Extract(doc, 0, 1)
	if err != nil {
		t.Fatalf("Extract head failed: %v", err)
	}
	tail, err := codec.Extract(doc, 1, 3)
	if err != nil {
		t.Fatalf("Extract tail failed: %v", err)
	}
	if n, _ := codec.PageCount(tail); n != 2 {
		t.Fatalf("expected 2 pages in tail, got %d", n)
	}

	merged, err := codec.Merge([][]byte{head, tail})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if n, _ := codec.PageCount(merged); n != 3 {
		t.Fatalf("expected 3 pages after merge, got %d", n)
	}

	if _, err := codec.Extract(doc, 2, 2); err == nil {
		t.Fatal("expected error for empty range")
	}
	if _, err := codec.Merge(nil); err == nil {
		t.Fatal("expected error merging nothing")
	}
	if _, err := codec.PageCount([]byte("not a pdf")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestPagePathsSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-2.png", "page-1.png", "input.pdf", "page-x.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	paths, err := pagePaths(dir)
	if err != nil {
		t.Fatalf("pagePaths failed: %v", err)
	}
	want := []string{"page-1.png", "page-2.png", "page-10.png"}
	if len(paths) != len(want) {
		t.Fatalf("unexpected paths %v", paths)
	}
	for i, w := range want {
		if filepath.Base(paths[i]) != w {
			t.Fatalf("paths[%d] = %s want %s", i, paths[i], w)
		}
	}
}

func TestRasterizeRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}
	doc := threePageDoc(t)
	r := NewRasterizer("", 2, t.TempDir())
	if r.DPI() != 144 {
		t.Fatalf("expected 144 dpi, got %d", r.DPI())
	}
	frames, err := r.Rasterize(context.Background(), doc)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[0].Width != 100 || frames[0].Height != 50 {
		t.Fatalf("unexpected first page size %dx%d", frames[0].Width, frames[0].Height)
	}
	if frames[2].Width != 60 || frames[2].Height != 80 {
		t.Fatalf("unexpected last page size %dx%d", frames[2].Width, frames[2].Height)
	}
}
