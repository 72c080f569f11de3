// Package sharpen applies the fixed 3×3 unsharp kernel used after resizing.
package sharpen

import (
	"image"
	"math"

	"github.com/AnyUserName/platepix/internal/raster"
)

// Threshold is the output width at or below which sharpening is skipped.
const Threshold = 200

// Kernel weights sum to exactly 1, so flat regions pass through unchanged.
var Kernel = [3][3]float64{
	{-0.1, -0.1, -0.1},
	{-0.1, 1.8, -0.1},
	{-0.1, -0.1, -0.1},
}

// Apply convolves the R, G and B channels of img with Kernel and returns a
// new buffer. Alpha and the outermost 1-pixel ring are copied unchanged.
// Every output value is computed from img only.
func Apply(img *image.NRGBA) (*image.NRGBA, error) {
	if err := raster.CheckBuffer("sharpen", img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+w*4], img.Pix[si:si+w*4])
	}

	src := img.Pix
	stride := img.Stride
	base := img.PixOffset(b.Min.X, b.Min.Y)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			oi := y*out.Stride + x*4
			for c := 0; c < 3; c++ {
				var sum float64
				for ky := -1; ky <= 1; ky++ {
					row := base + (y+ky)*stride
					for kx := -1; kx <= 1; kx++ {
						sum += Kernel[ky+1][kx+1] * float64(src[row+(x+kx)*4+c])
					}
				}
				out.Pix[oi+c] = clampByte(sum)
			}
		}
	}
	return out, nil
}

// MaybeApply sharpens img only when it is wider than Threshold; otherwise img
// is returned as is.
func MaybeApply(img *image.NRGBA) (*image.NRGBA, bool, error) {
	if err := raster.CheckBuffer("sharpen", img); err != nil {
		return nil, false, err
	}
	if img.Bounds().Dx() <= Threshold {
		return img, false, nil
	}
	out, err := Apply(img)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// clampByte stores v the way a clamped 8-bit channel does: clamp, then round.
func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
