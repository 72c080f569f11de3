// Package raster defines the decode/resize/encode capability every image
// stage is built on, and the production implementation of it.
package raster

import (
	"context"
	"encoding/base64"
	"image"
)

// Backend is the capability surface for turning bytes into pixels and back.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Decode rasterizes data and reports the detected source format.
	Decode(ctx context.Context, data []byte) (*image.NRGBA, string, error)

	// Resize draws img into a new w×h buffer.
	Resize(ctx context.Context, img *image.NRGBA, w, h int) (*image.NRGBA, error)

	// Encode serializes img as format at quality (0-100).
	Encode(ctx context.Context, img *image.NRGBA, format string, quality int) ([]byte, error)

	// Formats lists the encode formats this backend can produce.
	Formats() []string
}

// Encoded is one encoded output of the pipeline.
type Encoded struct {
	Format  string `json:"format"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality int    `json:"quality"`
	Data    []byte `json:"-"`
}

// Size returns the encoded length in bytes.
func (e *Encoded) Size() int64 {
	if e == nil {
		return 0
	}
	return int64(len(e.Data))
}

// DataURI returns the output as a self-contained data: URI.
func (e *Encoded) DataURI() string {
	return "data:" + MIMEType(e.Format) + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

// MIMEType maps an encode format name to its media type.
func MIMEType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "avif":
		return "image/avif"
	case "gif":
		return "image/gif"
	}
	return "application/octet-stream"
}

// CheckBuffer verifies that img's backing slice covers its bounds.
func CheckBuffer(op string, img *image.NRGBA) error {
	if img == nil || img.Pix == nil {
		return &NoRenderingSurfaceError{Op: op}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return &InvalidBufferError{Op: op, Want: 1, Got: b.Dx() * b.Dy()}
	}
	if img.Stride < b.Dx()*4 {
		return &InvalidBufferError{Op: op, Want: b.Dx() * 4, Got: img.Stride}
	}
	need := (b.Dy()-1)*img.Stride + b.Dx()*4
	if len(img.Pix) < need {
		return &InvalidBufferError{Op: op, Want: need, Got: len(img.Pix)}
	}
	return nil
}
