package inpaint

import (
	"math"

	"wmclean/internal/raster"
)

const (
	// DefaultRadius gives the 5x5 neighbourhood.
	DefaultRadius = 2
	// DefaultMaxPasses bounds how far filling propagates into large regions.
	DefaultMaxPasses = 64
)

// Options tunes Fill.
type Options struct {
	Radius    int
	MaxPasses int
}

// Stats summarizes one Fill call.
type Stats struct {
	Masked   int
	Filled   int
	Passes   int
	Unfilled int
}

// Fill replaces each masked pixel with the rounded mean colour of the
// unmasked pixels in its (2*Radius+1)^2 window. A masked pixel with no
// unmasked neighbour is left as is for that pass. Pixels filled in one pass
// count as known in the next, so large regions are filled from the outside
// in until nothing changes or MaxPasses is reached. Alpha is preserved.
//
// The input frame is not modified.
func Fill(f *raster.Frame, m *raster.Mask, opts Options) (*raster.Frame, Stats) {
	radius := opts.Radius
	if radius <= 0 {
		radius = DefaultRadius
	}
	maxPasses := opts.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	out := f.Clone()
	stats := Stats{Masked: m.Count()}
	if stats.Masked == 0 {
		return out, stats
	}

	w, h := f.Width, f.Height
	known := make([]bool, len(m.Bits))
	pending := make([]int, 0, stats.Masked)
	for i, masked := range m.Bits {
		known[i] = !masked
		if masked {
			pending = append(pending, i)
		}
	}

	type update struct {
		index   int
		r, g, b uint8
	}
	updates := make([]update, 0, len(pending))

	for stats.Passes < maxPasses && len(pending) > 0 {
		updates = updates[:0]
		remaining := make([]int, 0, len(pending))
		for _, idx := range pending {
			x, y := idx%w, idx/w
			var sumR, sumG, sumB, n int
			for ny := max(0, y-radius); ny <= min(h-1, y+radius); ny++ {
				for nx := max(0, x-radius); nx <= min(w-1, x+radius); nx++ {
					ni := ny*w + nx
					if !known[ni] {
						continue
					}
					o := ni * out.Channels
					sumR += int(out.Pix[o])
					sumG += int(out.Pix[o+1])
					sumB += int(out.Pix[o+2])
					n++
				}
			}
			if n == 0 {
				remaining = append(remaining, idx)
				continue
			}
			updates = append(updates, update{
				index: idx,
				r:     roundMean(sumR, n),
				g:     roundMean(sumG, n),
				b:     roundMean(sumB, n),
			})
		}
		if len(updates) == 0 {
			break
		}
		for _, u := range updates {
			o := u.index * out.Channels
			out.Pix[o], out.Pix[o+1], out.Pix[o+2] = u.r, u.g, u.b
			known[u.index] = true
		}
		stats.Filled += len(updates)
		stats.Passes++
		pending = remaining
	}
	stats.Unfilled = len(pending)
	return out, stats
}

func roundMean(sum, n int) uint8 {
	return uint8(math.Round(float64(sum) / float64(n)))
}
