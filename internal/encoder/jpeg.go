package encoder

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
)

// JPEGEncoder encodes images to baseline JPEG using Go's standard library.
type JPEGEncoder struct{}

func (e *JPEGEncoder) Format() string    { return "jpeg" }
func (e *JPEGEncoder) Extension() string { return "jpg" }
func (e *JPEGEncoder) Available() bool   { return true }

func (e *JPEGEncoder) Encode(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// image/jpeg treats <1 as 1, which is what a quality of 0 should mean.
	quality = ClampQuality(quality)
	if quality < 1 {
		quality = 1
	}

	var buf bytes.Buffer
	buf.Grow(64 * 1024)

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
