package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"wmclean/internal/raster"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WatermarkedFrame returns a white frame with a light-gray band across the
// middle rows and a dark ink pixel in each corner.
func WatermarkedFrame(width, height int) *raster.Frame {
	f := raster.NewFrame(width, height)
	for i := range f.Pix {
		f.Pix[i] = 255
	}
	for y := height / 3; y < 2*height/3; y++ {
		for x := 0; x < width; x++ {
			off := f.Offset(x, y)
			f.Pix[off], f.Pix[off+1], f.Pix[off+2] = 200, 200, 200
		}
	}
	for _, pt := range [][2]int{{0, 0}, {width - 1, 0}, {0, height - 1}, {width - 1, height - 1}} {
		off := f.Offset(pt[0], pt[1])
		f.Pix[off], f.Pix[off+1], f.Pix[off+2] = 10, 10, 10
	}
	return f
}

// PNG encodes f or fails the test.
func PNG(t testing.TB, f *raster.Frame) []byte {
	t.Helper()
	data, err := raster.EncodePNG(f)
	if err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return data
}
