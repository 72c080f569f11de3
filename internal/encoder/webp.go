package encoder

import (
	"bytes"
	"context"
	"image"

	"github.com/chai2010/webp"
)

// WebPEncoder encodes images to WebP through libwebp (bundled by chai2010/webp).
type WebPEncoder struct {
	// Lossless switches to lossless mode when quality is 100.
	Lossless bool
}

func (e *WebPEncoder) Format() string    { return "webp" }
func (e *WebPEncoder) Extension() string { return "webp" }
func (e *WebPEncoder) Available() bool   { return true }

func (e *WebPEncoder) Encode(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	quality = ClampQuality(quality)

	var buf bytes.Buffer
	buf.Grow(64 * 1024)

	opts := &webp.Options{
		Lossless: e.Lossless && quality == 100,
		Quality:  float32(quality),
	}
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
