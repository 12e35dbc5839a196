package detect

import "wmclean/internal/raster"

// Dilate grows m by radius pixels in every direction (Chebyshev distance).
// The result always contains m; radius 0 returns a copy. It runs as two
// separable passes over running counts, so cost does not depend on radius.
func Dilate(m *raster.Mask, radius int) *raster.Mask {
	if radius <= 0 || m.Empty() {
		return m.Clone()
	}
	w, h := m.Width, m.Height

	horizontal := make([]bool, len(m.Bits))
	for y := 0; y < h; y++ {
		row := m.Bits[y*w : (y+1)*w]
		out := horizontal[y*w : (y+1)*w]
		dilateLine(len(row), radius, func(i int) bool { return row[i] }, func(i int) { out[i] = true })
	}

	result := raster.NewMask(w, h)
	for x := 0; x < w; x++ {
		col := x
		dilateLine(h, radius,
			func(i int) bool { return horizontal[i*w+col] },
			func(i int) { result.Bits[i*w+col] = true })
	}
	return result
}

// dilateLine marks every index within radius of a set index along one line.
func dilateLine(n, radius int, get func(int) bool, mark func(int)) {
	count := 0
	for i := 0; i < min(radius, n); i++ {
		if get(i) {
			count++
		}
	}
	for i := 0; i < n; i++ {
		if enter := i + radius; enter < n && get(enter) {
			count++
		}
		if leave := i - radius - 1; leave >= 0 && get(leave) {
			count--
		}
		if count > 0 {
			mark(i)
		}
	}
}
