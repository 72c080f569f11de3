// Package dimension computes output sizes that fit a bounding box while
// keeping the source aspect ratio.
package dimension

import "math"

// Fit returns the output size for a srcW×srcH image bounded by maxW×maxH.
//
// Width is constrained first; the height is then re-checked on its own and,
// if still too tall, the width is recomputed from the clamped height. This is
// not always the tightest possible fit for unusual ratios, and callers depend
// on it producing exactly these numbers.
//
// Both results are rounded to the nearest integer and never drop below 1.
func Fit(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return clampMin(maxW), clampMin(maxH)
	}

	ratio := float64(srcW) / float64(srcH)
	w := float64(srcW)
	h := float64(srcH)

	if w > float64(maxW) {
		w = float64(maxW)
		h = w / ratio
	}
	if h > float64(maxH) {
		h = float64(maxH)
		w = h * ratio
	}

	return clampMin(int(math.Round(w))), clampMin(int(math.Round(h)))
}

// AspectRatio returns width/height, or 0 for a degenerate height.
func AspectRatio(width, height int) float64 {
	if height == 0 {
		return 0
	}
	return float64(width) / float64(height)
}

func clampMin(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
