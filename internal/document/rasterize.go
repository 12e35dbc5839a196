package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"wmclean/internal/raster"
)

// Rasterizer renders PDF pages to frames with pdftoppm.
type Rasterizer struct {
	Binary string
	// Scale multiplies the 72 DPI base resolution.
	Scale   float64
	WorkDir string
}

// NewRasterizer returns a rasterizer with defaults applied.
func NewRasterizer(binary string, scale float64, workDir string) *Rasterizer {
	if strings.TrimSpace(binary) == "" {
		binary = "pdftoppm"
	}
	if scale <= 0 {
		scale = 2
	}
	return &Rasterizer{Binary: binary, Scale: scale, WorkDir: workDir}
}

// DPI returns the rendering resolution.
func (r *Rasterizer) DPI() int {
	return int(72*r.Scale + 0.5)
}

// Rasterize renders every page of pdf, in order.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte) ([]*raster.Frame, error) {
	dir, err := os.MkdirTemp(r.WorkDir, "rasterize-")
	if err != nil {
		return nil, fmt.Errorf("rasterize: create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("rasterize: write input: %w", err)
	}
	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, r.Binary, "-r", strconv.Itoa(r.DPI()), "-png", input, prefix) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	paths, err := pagePaths(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	frames := make([]*raster.Frame, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("rasterize: read %s: %w", filepath.Base(path), err)
		}
		frame, _, err := raster.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("rasterize: decode %s: %w", filepath.Base(path), err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// pagePaths lists pdftoppm output ("page-1.png" or "page-01.png") in page order.
func pagePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("rasterize: list output: %w", err)
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "page-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".png"))
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
