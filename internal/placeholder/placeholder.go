// Package placeholder builds the cheap stand-ins shown before a photo loads:
// a blurred low-resolution frame, a BlurHash string and an average colour.
package placeholder

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
)

// DefaultSigma is the gaussian blur applied to blur-up frames.
const DefaultSigma = 1.5

// Hash components: 4 horizontal, 3 vertical keeps the string around 28 chars.
const (
	hashX = 4
	hashY = 3

	// hashMaxDim caps the buffer BlurHash walks; the DCT only needs a thumbnail.
	hashMaxDim = 64
)

// Blur returns a gaussian-blurred copy of img. A non-positive sigma returns img.
func Blur(img *image.NRGBA, sigma float32) *image.NRGBA {
	if sigma <= 0 {
		return img
	}
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Hash computes the BlurHash of img.
func Hash(img image.Image) (string, error) {
	b := img.Bounds()
	if b.Dx() > hashMaxDim || b.Dy() > hashMaxDim {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, hashMaxDim, 0, imaging.Box)
		} else {
			img = imaging.Resize(img, 0, hashMaxDim, imaging.Box)
		}
	}
	hash, err := blurhash.Encode(hashX, hashY, img)
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// AvgColor calculates the average RGB colour of img.
func AvgColor(img *image.NRGBA) [3]uint8 {
	b := img.Bounds()
	count := uint64(b.Dx()) * uint64(b.Dy())
	if count == 0 {
		return [3]uint8{}
	}
	var rSum, gSum, bSum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			rSum += uint64(img.Pix[i])
			gSum += uint64(img.Pix[i+1])
			bSum += uint64(img.Pix[i+2])
			i += 4
		}
	}
	return [3]uint8{
		uint8(rSum / count),
		uint8(gSum / count),
		uint8(bSum / count),
	}
}
