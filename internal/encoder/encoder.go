// Package encoder turns pixel buffers into encoded bytes, one Encoder per
// output format.
package encoder

import (
	"context"
	"image"
)

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format name ("webp", "jpeg", "png", "avif").
	Format() string

	// Encode converts the image to bytes at the given quality (0-100).
	Encode(ctx context.Context, img image.Image, quality int) ([]byte, error)

	// Available reports whether the encoder can run in this process.
	// External tools (avifenc) may not be installed.
	Available() bool

	// Extension returns the file extension without dot.
	Extension() string
}

// ClampQuality pins q to [0,100].
func ClampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}
